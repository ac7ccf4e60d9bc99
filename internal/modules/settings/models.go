package settings

// SettingType identifies how a setting value is validated and rendered.
type SettingType string

const (
	TypeInt    SettingType = "t_int"
	TypeBool   SettingType = "t_bool"
	TypeString SettingType = "t_str"
)

// Definition describes one adjustable setting: its type, display metadata
// and default. The definitions below are the full set of runtime-adjustable
// settings; keys not listed here are rejected by the service.
type Definition struct {
	Key         string      `json:"key"`
	Type        SettingType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Default     interface{} `json:"default"`
	Max         float64     `json:"max,omitempty"` // upper bound for t_int settings
	Secret      bool        `json:"secret,omitempty"`
}

// Definitions lists all adjustable settings in display order.
var Definitions = []Definition{
	{
		Key:         "show_everything",
		Type:        TypeBool,
		Name:        "Cheat mode: Show all empires",
		Description: "Show data for countries the player has not met yet and events before first contact.",
		Default:     false,
	},
	{
		Key:         "only_show_default_empires",
		Type:        TypeBool,
		Name:        "Show only default empires",
		Description: "Hide fallen empires, marauders and other special countries from the ledger.",
		Default:     false,
	},
	{
		Key:         "allow_backdating",
		Type:        TypeBool,
		Name:        "Extend event timelines to the campaign start",
		Description: "Display events that precede the first snapshot as if they started on the first in-game day.",
		Default:     true,
	},
	{
		Key:         "save_name_filter",
		Type:        TypeString,
		Name:        "Save name filter",
		Description: "Only show campaigns whose database file name contains this substring.",
		Default:     "",
	},
	{
		Key:         "cache_ttl_minutes",
		Type:        TypeInt,
		Name:        "Render cache lifetime (minutes)",
		Description: "How long rendered plots, galaxy views and ledger pages stay valid before they are rebuilt.",
		Default:     60,
		Max:         1440,
	},
	{
		Key:         "backup_keep",
		Type:        TypeInt,
		Name:        "Backups to keep",
		Description: "Number of backup archives retained locally and remotely.",
		Default:     7,
		Max:         100,
	},
	{
		Key:         "s3_endpoint",
		Type:        TypeString,
		Name:        "S3 endpoint",
		Description: "Endpoint URL for S3-compatible backup storage. Leave empty to disable remote backups.",
		Default:     "",
	},
	{
		Key:         "s3_access_key_id",
		Type:        TypeString,
		Name:        "S3 access key ID",
		Description: "Access key for the backup bucket.",
		Default:     "",
		Secret:      true,
	},
	{
		Key:         "s3_secret_access_key",
		Type:        TypeString,
		Name:        "S3 secret access key",
		Description: "Secret key for the backup bucket.",
		Default:     "",
		Secret:      true,
	},
	{
		Key:         "s3_bucket",
		Type:        TypeString,
		Name:        "S3 bucket",
		Description: "Bucket name for remote backup archives.",
		Default:     "",
	},
}

// DefinitionFor returns the definition for a key, or nil if the key is not
// an adjustable setting.
func DefinitionFor(key string) *Definition {
	for i := range Definitions {
		if Definitions[i].Key == key {
			return &Definitions[i]
		}
	}
	return nil
}

// Setting is the API representation of one adjustable setting: its
// definition plus the currently effective value.
type Setting struct {
	Definition
	Value interface{} `json:"value"`
}

// SettingUpdate represents a setting value update request
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
