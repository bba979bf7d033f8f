package schema

import (
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/models"
)

// Capabilities describe which optional parts of the storage schema this
// deployment carries. They are resolved once at startup and injected into
// the components that need them; nothing re-probes the schema per request.
type Capabilities struct {
	// HasProcessingStatus reports whether orders may hold the intermediate
	// "processing" status.
	HasProcessingStatus bool
	// HasStockColumn reports whether products carry a stock column the cart
	// merge may clamp quantities against.
	HasStockColumn bool
}

// Resolve honours env overrides (SCHEMA_HAS_PROCESSING, SCHEMA_HAS_STOCK)
// and falls back to probing the database: the schema_info version decides
// the status set, the migrator decides column presence. Anything that
// cannot be determined resolves to false.
func Resolve(db *gorm.DB) Capabilities {
	caps := Capabilities{}

	if v, ok := boolEnv("SCHEMA_HAS_PROCESSING"); ok {
		caps.HasProcessingStatus = v
	} else {
		caps.HasProcessingStatus = schemaVersion(db) >= 2
	}

	if v, ok := boolEnv("SCHEMA_HAS_STOCK"); ok {
		caps.HasStockColumn = v
	} else {
		caps.HasStockColumn = db.Migrator().HasColumn(&models.Product{}, "stock")
	}

	return caps
}

func schemaVersion(db *gorm.DB) int {
	if !db.Migrator().HasTable(&models.SchemaInfo{}) {
		return 0
	}
	var info models.SchemaInfo
	if err := db.First(&info).Error; err != nil {
		return 0
	}
	return info.Version
}

func boolEnv(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
