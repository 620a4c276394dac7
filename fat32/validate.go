package fat32

import (
	"bytes"

	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/fat32resize/errors"
)

var fat32FSType = []byte("FAT32   ")

// ValidateBootSector checks the structural invariants a resize operation
// depends on and aggregates every violation it finds, rather than stopping
// at the first one, so a single failed run reports everything wrong with
// the filesystem at once. When allowInvalidated is true, a zeroed boot
// signature is tolerated, since that's the danger window a crashed resize
// can leave behind; every other invariant is still enforced.
func ValidateBootSector(b *BootSector, allowInvalidated bool) error {
	var result *multierror.Error

	if !b.IsSignatureValid() && !(allowInvalidated && b.BootSignatureValue() == 0) {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("boot signature is not 0xAA55"))
	}

	if !validSectorSize(b.BytesPerSector()) {
		result = multierror.Append(result, errors.ErrUnsupportedSectorSize.WithMessage("unsupported bytes-per-sector value"))
	}

	if b.SectorsPerCluster() == 0 || (b.SectorsPerCluster()&(b.SectorsPerCluster()-1)) != 0 {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("sectors-per-cluster is not a power of two"))
	}

	if b.ReservedSectors() < 1 {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("reserved sector count must be >= 1"))
	}

	if b.NumFATs() == 0 || b.NumFATs() > 2 {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("number of FATs must be 1 or 2"))
	}

	if b.RootEntryCount() != 0 {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("root entry count must be 0 for FAT32"))
	}

	if b.TotalSectors16() != 0 {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("16-bit total sectors field must be 0 for FAT32"))
	}

	if b.FATSize16() != 0 {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("16-bit FAT size field must be 0 for FAT32"))
	}

	if b.TotalSectors32() == 0 {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("32-bit total sectors field must be nonzero for FAT32"))
	}

	if b.FATSize32() == 0 {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("32-bit FAT size field must be nonzero for FAT32"))
	}

	if !bytes.Equal(b.FSType(), fat32FSType) {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("filesystem type string is not \"FAT32   \""))
	}

	if b.RootCluster() < 2 {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("root cluster must be >= 2"))
	}

	media := b.MediaType()
	if media != 0xF0 && media < 0xF8 {
		result = multierror.Append(result, errors.ErrBootSectorValidation.WithMessage("media type must be 0xF0 or 0xF8-0xFF"))
	}

	if b.DataClusters() < MinFAT32Clusters {
		result = multierror.Append(result, errors.ErrInvalidFAT32.WithMessage("data cluster count is below the FAT32 minimum of 65525; this is FAT12/16 geometry"))
	}

	if result == nil {
		return nil
	}
	return errors.ErrBootSectorValidation.Wrap(result.ErrorOrNil())
}

// ValidateFSInfo checks the FSInfo sector's three fixed signatures.
func ValidateFSInfo(f *FSInfo) error {
	if !f.SignaturesValid() {
		return errors.ErrFSInfoValidation.WithMessage("one or more FSInfo signatures are invalid")
	}
	return nil
}

// BootSectorsMatch compares the geometry fields of the primary boot sector
// against its backup copy. Only the fields that describe layout are
// compared; the backup is permitted to diverge in volume label or boot code
// the way a real FAT32 filesystem's does.
func BootSectorsMatch(primary, backup *BootSector) bool {
	return primary.BytesPerSector() == backup.BytesPerSector() &&
		primary.SectorsPerCluster() == backup.SectorsPerCluster() &&
		primary.ReservedSectors() == backup.ReservedSectors() &&
		primary.NumFATs() == backup.NumFATs() &&
		primary.FATSize32() == backup.FATSize32() &&
		primary.RootCluster() == backup.RootCluster() &&
		primary.FSInfoSector() == backup.FSInfoSector()
}

func validSectorSize(size uint16) bool {
	for _, v := range ValidSectorSizes {
		if v == size {
			return true
		}
	}
	return false
}
