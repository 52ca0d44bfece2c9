package imu

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile section names.
const (
	ProfileAccelerometer = "accelerometer"
	ProfileMagnetometer  = "magnetometer"
	ProfileGyroscope     = "gyroscope"
)

// Profile persists per-sensor calibration offsets to a YAML file, so a
// completed calibration survives power cycles. Offsets are stored as
// hex strings to keep the file hand-inspectable.
type Profile struct {
	path string
}

func NewProfile(path string) *Profile {
	return &Profile{path: path}
}

type profileFile struct {
	Offsets map[string]string `yaml:"offsets"`
}

// Load returns all stored offset blocks. A missing file is not an
// error; it simply means nothing has been committed yet.
func (p *Profile) Load() (map[string][]byte, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	blocks := make(map[string][]byte, len(f.Offsets))
	for kind, s := range f.Offsets {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("profile %s offsets: %w", kind, err)
		}
		blocks[kind] = b
	}
	return blocks, nil
}

// Store commits one sensor's offset block, preserving the others.
func (p *Profile) Store(kind string, offsets []byte) error {
	blocks, err := p.Load()
	if err != nil {
		return err
	}
	if blocks == nil {
		blocks = make(map[string][]byte)
	}
	blocks[kind] = offsets

	f := profileFile{Offsets: make(map[string]string, len(blocks))}
	for k, b := range blocks {
		f.Offsets[k] = hex.EncodeToString(b)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
