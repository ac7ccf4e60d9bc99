package settings

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides settings business logic
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// GetAll returns every adjustable setting in definition order, each with
// its currently effective value (stored value, or the default).
func (s *Service) GetAll() ([]Setting, error) {
	dbValues, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make([]Setting, 0, len(Definitions))
	for _, def := range Definitions {
		setting := Setting{Definition: def, Value: def.Default}
		if raw, exists := dbValues[def.Key]; exists {
			if v, err := coerce(def, raw); err == nil {
				setting.Value = v
			}
		}
		result = append(result, setting)
	}

	return result, nil
}

// Get retrieves the effective value of a single setting.
func (s *Service) Get(key string) (interface{}, error) {
	def := DefinitionFor(key)
	if def == nil {
		return nil, fmt.Errorf("unknown setting: %s", key)
	}

	raw, err := s.repo.Get(key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return def.Default, nil
	}

	v, err := coerce(*def, *raw)
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", *raw).Msg("Stored setting has wrong type, using default")
		return def.Default, nil
	}
	return v, nil
}

// Set validates a value against the setting's definition and persists it.
func (s *Service) Set(key string, value interface{}) error {
	def := DefinitionFor(key)
	if def == nil {
		return fmt.Errorf("unknown setting: %s", key)
	}

	strValue, err := validate(*def, value)
	if err != nil {
		return err
	}

	return s.repo.Set(key, strValue)
}

// Apply validates every update first and persists them only if all are
// valid, so a batch either applies completely or not at all.
func (s *Service) Apply(updates map[string]interface{}) error {
	validated := make(map[string]string, len(updates))
	for key, value := range updates {
		def := DefinitionFor(key)
		if def == nil {
			return fmt.Errorf("unknown setting: %s", key)
		}
		strValue, err := validate(*def, value)
		if err != nil {
			return err
		}
		validated[key] = strValue
	}

	for key, strValue := range validated {
		if err := s.repo.Set(key, strValue); err != nil {
			return fmt.Errorf("failed to persist setting %s: %w", key, err)
		}
	}

	return nil
}

// validate checks a raw update value against the definition and returns
// its storage representation.
func validate(def Definition, value interface{}) (string, error) {
	switch def.Type {
	case TypeBool:
		switch v := value.(type) {
		case bool:
			if v {
				return "true", nil
			}
			return "false", nil
		case string:
			if v == "true" || v == "1" || v == "yes" || v == "on" {
				return "true", nil
			}
			return "false", nil
		default:
			return "", fmt.Errorf("setting %s must be a boolean", def.Key)
		}

	case TypeInt:
		var intVal int
		switch v := value.(type) {
		case float64: // JSON numbers decode as float64
			intVal = int(v)
		case int:
			intVal = v
		default:
			return "", fmt.Errorf("setting %s must be an integer", def.Key)
		}
		if intVal < 0 {
			return "", fmt.Errorf("setting %s must be non-negative", def.Key)
		}
		if def.Max > 0 && float64(intVal) > def.Max {
			return "", fmt.Errorf("setting %s must be at most %.0f", def.Key, def.Max)
		}
		return fmt.Sprintf("%d", intVal), nil

	case TypeString:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("setting %s must be a string", def.Key)
		}
		return v, nil

	default:
		return "", fmt.Errorf("setting %s has unsupported type %s", def.Key, def.Type)
	}
}

// coerce converts a stored string value to the definition's native type.
func coerce(def Definition, raw string) (interface{}, error) {
	switch def.Type {
	case TypeBool:
		return raw == "true" || raw == "1" || raw == "yes" || raw == "on", nil
	case TypeInt:
		var intVal int
		if _, err := fmt.Sscanf(raw, "%d", &intVal); err != nil {
			return nil, fmt.Errorf("setting %s: %q is not an integer", def.Key, raw)
		}
		return intVal, nil
	case TypeString:
		return raw, nil
	default:
		return nil, fmt.Errorf("setting %s has unsupported type %s", def.Key, def.Type)
	}
}
