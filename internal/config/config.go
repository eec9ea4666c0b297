// Package config loads and validates the gateway's JSON/JSONC configuration
// file, applying defaults and an optional .env overlay before validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ProxyMode selects which wire protocol the gateway speaks to its
// upstream: "dimse" is the full core of this repository; "dicomweb" is a
// pass-through proxy to an upstream DICOMweb server and is not implemented
// beyond config validation.
type ProxyMode string

const (
	ProxyModeDIMSE     ProxyMode = "dimse"
	ProxyModeDICOMweb  ProxyMode = "dicomweb"
	fetchLevelStudy              = "STUDY"
	fetchLevelSeries             = "SERIES"
	fetchLevelInstance           = "INSTANCE"
)

// AEEndpoint identifies a DIMSE application entity by AE title and address.
type AEEndpoint struct {
	AET  string `json:"aet" validate:"required,min=1,max=16"`
	IP   string `json:"ip" validate:"required"`
	Port int    `json:"port" validate:"required,min=1,max=65535"`
}

// DIMSEProxySettings configures this gateway's own SCP identity and the
// PACS peers it acts as an SCU towards.
type DIMSEProxySettings struct {
	ProxyServer AEEndpoint   `json:"proxyServer" validate:"required"`
	Peers       []AEEndpoint `json:"peers" validate:"required,min=1,dive"`
}

// SSLConfig configures the optional HTTPS listener.
type SSLConfig struct {
	Enabled            bool   `json:"enabled"`
	Port               int    `json:"port" validate:"omitempty,min=1,max=65535"`
	CertPath           string `json:"certPath" validate:"required_if=Enabled true"`
	KeyPath            string `json:"keyPath" validate:"required_if=Enabled true"`
	GenerateSelfSigned bool   `json:"generateSelfSigned"`
	RedirectHTTP       bool   `json:"redirectHttp"`
}

// CORSConfig configures the go-chi/cors middleware.
type CORSConfig struct {
	Origin         []string `json:"origin" validate:"required,min=1"`
	Methods        []string `json:"methods" validate:"required,min=1"`
	AllowedHeaders []string `json:"allowedHeaders"`
	Credentials    bool     `json:"credentials"`
}

// Config is the gateway's full, validated runtime configuration.
type Config struct {
	ProxyMode          ProxyMode          `json:"proxyMode" validate:"required,oneof=dimse dicomweb"`
	DIMSEProxySettings DIMSEProxySettings `json:"dimseProxySettings" validate:"required"`

	WebserverPort int        `json:"webserverPort" validate:"required,min=1,max=65535"`
	SSL           SSLConfig  `json:"ssl"`
	CORS          CORSConfig `json:"cors" validate:"required"`

	StoragePath           string `json:"storagePath" validate:"required"`
	CacheRetentionMinutes int    `json:"cacheRetentionMinutes" validate:"min=0"`
	CacheMaxSizeBytes     int64  `json:"cacheMaxSizeBytes" validate:"min=0"`
	EnableCache           bool   `json:"enableCache"`

	UseCGet         bool   `json:"useCget"`
	UseFetchLevel   string `json:"useFetchLevel" validate:"required,oneof=STUDY SERIES INSTANCE"`
	MaxAssociations int    `json:"maxAssociations" validate:"required,min=1"`

	QIDOMinChars       int  `json:"qidoMinChars" validate:"min=0"`
	QIDOAppendWildcard bool `json:"qidoAppendWildcard"`

	EnableMetrics bool `json:"enableMetrics"`
}

// Defaults returns a Config pre-populated with the gateway's default
// values, applied before a loaded file is unmarshalled on top.
func Defaults() Config {
	return Config{
		ProxyMode: ProxyModeDIMSE,
		DIMSEProxySettings: DIMSEProxySettings{
			ProxyServer: AEEndpoint{AET: "DICOM_GATEWAY", IP: "0.0.0.0", Port: 11112},
		},
		WebserverPort: 8080,
		CORS: CORSConfig{
			Origin:         []string{"*"},
			Methods:        []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Accept"},
		},
		StoragePath:           "./cache",
		CacheRetentionMinutes: 60,
		CacheMaxSizeBytes:     10 << 30, // 10 GiB
		EnableCache:           true,
		UseCGet:               false,
		UseFetchLevel:         fetchLevelInstance,
		MaxAssociations:       4,
		QIDOMinChars:          2,
		QIDOAppendWildcard:    true,
		EnableMetrics:         true,
	}
}

// candidatePaths are searched, in order, relative to both the current
// working directory and the running binary's directory.
var candidateRelPaths = []string{
	"config.json",
	"config.jsonc",
	filepath.Join("config", "config.json"),
	filepath.Join("config", "config.jsonc"),
}

// Load finds, reads, and validates the gateway configuration file. It also
// loads a ".env" overlay (if present) into the process environment before
// reading the config, so local runs can override settings without editing
// the checked-in file.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(stripJSONC(raw), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// findConfigFile searches the CWD and the executable's directory for one
// of the recognized config file names.
func findConfigFile() (string, error) {
	roots := []string{"."}
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}

	for _, root := range roots {
		for _, rel := range candidateRelPaths {
			candidate := filepath.Join(root, rel)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("config: no config.{json,jsonc} found in ./ or ./config/ (CWD or binary directory)")
}

// lineComment matches a "//" line comment not inside a string literal. It
// is intentionally conservative: it only strips a comment that starts at
// the beginning of a line's trailing whitespace-delimited token, which is
// sufficient for the hand-authored JSONC config files this gateway reads.
var lineComment = regexp.MustCompile(`(?m)^(\s*)//.*$`)
var blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

// stripJSONC removes "//" line comments and "/* */" block comments from a
// JSONC document so it can be parsed by encoding/json.
func stripJSONC(data []byte) []byte {
	out := blockComment.ReplaceAll(data, nil)
	out = lineComment.ReplaceAll(out, nil)
	return out
}

// Validate runs struct-tag validation over cfg using go-playground/validator.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// PrimaryPeer returns the SCU target. All outbound operations route to
// peers[0].
func (c *Config) PrimaryPeer() AEEndpoint {
	return c.DIMSEProxySettings.Peers[0]
}
