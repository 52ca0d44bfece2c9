package imu

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestProfile_MissingFileIsEmpty(t *testing.T) {
	p := NewProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	blocks, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("expected no blocks, got %v", blocks)
	}
}

func TestProfile_StorePreservesOtherSections(t *testing.T) {
	p := NewProfile(filepath.Join(t.TempDir(), "profile.yaml"))

	gyro := []byte{1, 2, 3, 4, 5, 6}
	mag := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0xFF}

	if err := p.Store(ProfileGyroscope, gyro); err != nil {
		t.Fatalf("Store gyro: %v", err)
	}
	if err := p.Store(ProfileMagnetometer, mag); err != nil {
		t.Fatalf("Store mag: %v", err)
	}

	blocks, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(blocks[ProfileGyroscope], gyro) {
		t.Errorf("gyro block = %x, want %x", blocks[ProfileGyroscope], gyro)
	}
	if !bytes.Equal(blocks[ProfileMagnetometer], mag) {
		t.Errorf("mag block = %x, want %x", blocks[ProfileMagnetometer], mag)
	}
}

func TestProfile_StoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "profile.yaml")
	p := NewProfile(path)
	if err := p.Store(ProfileAccelerometer, []byte{9, 8, 7, 6, 5, 4}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("profile file not created: %v", err)
	}
}

func TestProfile_RejectsCorruptOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("offsets:\n  gyroscope: \"zz\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewProfile(path).Load(); err == nil {
		t.Error("expected error for non-hex offsets")
	}
}
