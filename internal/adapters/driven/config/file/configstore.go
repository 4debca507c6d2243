package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix prefixes environment overrides: llm.api_key is TRACEQ_LLM_API_KEY.
const EnvPrefix = "TRACEQ_"

// providerEnv maps conventional provider key variables onto config keys.
// Earlier entries win when several are set.
var providerEnv = []struct{ env, key string }{
	{"ANTHROPIC_API_KEY", "keys.claude"},
	{"GEMINI_API_KEY", "keys.gemini"},
	{"GOOGLE_API_KEY", "keys.gemini"},
	{"OPENAI_API_KEY", "keys.openai"},
}

// ConfigStore loads and saves domain.Settings from a TOML or YAML file.
//
// Load layers, lowest first: built-in defaults, the file, provider key
// variables, then TRACEQ_* variables. A .env file next to the config file
// and one in the working directory are loaded into the environment first;
// they never override variables already set.
type ConfigStore struct {
	mu       sync.Mutex
	filePath string
	validate *validator.Validate
	getenv   func(string) string
}

// NewConfigStore creates a config store. path may be a directory (the file
// is config.toml, or config.yaml when only that exists) or a file path with
// a .toml, .yaml or .yml extension. If path is empty, defaults to ~/.traceq/.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".traceq")
	}

	filePath := path
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
	default:
		filePath = filepath.Join(path, "config.toml")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
				filePath = filepath.Join(path, "config.yaml")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, err
	}

	return &ConfigStore{
		filePath: filePath,
		validate: validator.New(),
		getenv:   os.Getenv,
	}, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load returns the effective settings.
func (s *ConfigStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadDotEnv()

	fs, err := s.readFile()
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.overlayEnv(&fs); err != nil {
		return domain.Settings{}, err
	}
	if err := s.check(&fs); err != nil {
		return domain.Settings{}, err
	}
	return fs.toDomain()
}

// Save validates settings and writes them to the file.
func (s *ConfigStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := fromDomain(&settings)
	if err := s.check(&fs); err != nil {
		return err
	}
	return s.writeFile(&fs)
}

// Set updates a single dotted key (e.g. "llm.provider") in the file.
// Environment overrides are not written back.
func (s *ConfigStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, err := s.readFile()
	if err != nil {
		return err
	}
	field, ok := leafFields(&fs)[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	if err := setField(field, value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := s.check(&fs); err != nil {
		return err
	}
	return s.writeFile(&fs)
}

// Get returns the effective value of a dotted key.
func (s *ConfigStore) Get(key string) (string, error) {
	settings, err := s.Load()
	if err != nil {
		return "", err
	}
	fs := fromDomain(&settings)
	field, ok := leafFields(&fs)[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	return fmt.Sprint(field.Interface()), nil
}

// Keys lists every settable dotted key in sorted order.
func Keys() []string {
	var fs fileSettings
	fields := leafFields(&fs)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSecretKey reports whether a config key holds a credential.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasPrefix(key, "keys.")
}

func (s *ConfigStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.filePath))
	return ext == ".yaml" || ext == ".yml"
}

// readFile decodes the file over the defaults. A missing file yields defaults.
func (s *ConfigStore) readFile() (fileSettings, error) {
	defaults := domain.DefaultSettings()
	fs := fromDomain(&defaults)

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return fs, err
	}

	if s.isYAML() {
		err = yaml.Unmarshal(data, &fs)
	} else {
		err = toml.Unmarshal(data, &fs)
	}
	if err != nil {
		return fs, fmt.Errorf("%w: parsing %s: %w", domain.ErrInvalidInput, s.filePath, err)
	}
	return fs, nil
}

func (s *ConfigStore) writeFile(fs *fileSettings) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(fs); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	} else {
		data, err = toml.Marshal(fs)
	}
	if err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

func (s *ConfigStore) loadDotEnv() {
	for _, path := range []string{filepath.Join(filepath.Dir(s.filePath), ".env"), ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("ignoring unreadable .env file", "path", path, "error", err)
		}
	}
}

func (s *ConfigStore) overlayEnv(fs *fileSettings) error {
	fields := leafFields(fs)

	seen := map[string]bool{}
	for _, pe := range providerEnv {
		if v := s.getenv(pe.env); v != "" && !seen[pe.key] {
			seen[pe.key] = true
			if err := setField(fields[pe.key], v); err != nil {
				return err
			}
		}
	}

	for key, field := range fields {
		env := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		v := s.getenv(env)
		if v == "" {
			continue
		}
		if err := setField(field, v); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, env, err)
		}
	}
	return nil
}

func (s *ConfigStore) check(fs *fileSettings) error {
	if err := s.validate.Struct(fs); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid configuration: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if _, err := fs.toDomain(); err != nil {
		return err
	}
	return nil
}

// leafFields maps dotted toml keys to settable fields of fs.
func leafFields(fs *fileSettings) map[string]reflect.Value {
	out := make(map[string]reflect.Value)
	root := reflect.ValueOf(fs).Elem()
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		prefix := root.Type().Field(i).Tag.Get("toml")
		for j := 0; j < section.NumField(); j++ {
			name := section.Type().Field(j).Tag.Get("toml")
			out[prefix+"."+name] = section.Field(j)
		}
	}
	return out
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
