package asset

import (
	"path/filepath"

	"github.com/google/uuid"
)

// idNamespace is the fixed UUID namespace for device asset ids. Changing it
// would re-upload every asset, so it must never change.
var idNamespace = uuid.MustParse("8a9c2f47-51d6-4e0b-9c3a-7f1e6b2d4a85")

// DeviceAssetID derives the stable identifier the server uses to recognize
// re-uploads of the same logical file. It is a name-based (SHA-1) UUID over
// the device id and the slash-normalized relative path, so the same path
// yields the same id on every run, on every machine, in any order.
func DeviceAssetID(deviceID, relPath string) string {
	name := deviceID + ":" + filepath.ToSlash(relPath)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
