// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort                       = "8080"
	DefaultDBPath                     = "segmentcraft.db"
	DefaultContentPath                = "content.yaml"
	DefaultWorkCycle                  = 1 * time.Second
	DefaultMaxConcurrentChains        = 4
	DefaultCraftAheadSeconds          = 20
	DefaultBufferAheadSeconds         = 180
	DefaultBufferBeforeSeconds        = 10
	DefaultPersistenceWindowSeconds   = 3600
	DefaultChainStartInFutureSeconds  = 0
	DefaultPreviewLengthMaxHours      = 8
	DefaultPreviewShipKeyLength       = 12
	DefaultShutdownTimeout            = 5 * time.Second
	DefaultTuningRootNote             = "A4"
	DefaultTuningRootPitchHz          = 432.0
	DefaultMainProgramLengthMaxDelta  = 280
	DefaultIntensityAutoCrescendoMin  = 0.2
	DefaultIntensityAutoCrescendoMax  = 0.8
	DefaultDeltaArcBeatLayersIncoming = 1
	DefaultShipLayout                 = "{{.ShipKey}}/{{.StorageKey}}"
)

// Shipped segment archive
const (
	DirPermissions  = 0755
	FilePermissions = 0644
	ShipFileExt     = ".json"
)

// Time
const (
	MicrosPerSecond = int64(1_000_000)
	MicrosPerMinute = int64(60_000_000)
	NanosPerMicro   = int64(1_000)
)

// Fabrication sentinels
const (
	// DeltaUnlimited marks a delta bound that is open on that side.
	DeltaUnlimited = -1
	// ShipKeyNameSeparator joins chain and segment parts of a storage key.
	ShipKeyNameSeparator = "-"
	// PreviewShipKeyPrefix prefixes generated ship keys of preview chains.
	PreviewShipKeyPrefix = "preview_"
	// UnknownKey is used when a track name or cache key cannot be resolved.
	UnknownKey = "unknown"
)

// Pick scoring for monophonic audio selection
const (
	ScoreMatchedEventName = 300
	ScoreMatchedNote      = 100
)

// Database
const (
	ChainsTable    = "chains"
	SegmentsTable  = "segments"
	TemplatesTable = "templates"
)

// HTTP
const (
	MaxSegmentsPerPage = 100
)
