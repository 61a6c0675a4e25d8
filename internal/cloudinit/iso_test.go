package cloudinit

import (
	"bytes"
	"io"
	"testing"

	"github.com/kdomanski/iso9660"
)

func TestGenerateISO(t *testing.T) {
	tests := []struct {
		name      string
		seed      *Seed
		expectErr bool
	}{
		{name: "nil seed", seed: nil, expectErr: true},
		{name: "dhcp seed", seed: testSeed()},
		{
			name: "static seed with password",
			seed: func() *Seed {
				s := testSeed()
				s.Password = "pw"
				s.Network.IPv4 = "192.168.1.10/24"
				s.Network.IPv6 = "2001:db8::10/64"
				return s
			}(),
		},
		{
			name: "invalid seed",
			seed: func() *Seed {
				s := testSeed()
				s.Username = ""
				return s
			}(),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isoBytes, err := GenerateISO(tt.seed)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateISO() error = %v", err)
			}
			if len(isoBytes) == 0 {
				t.Fatal("GenerateISO() returned empty image")
			}
			verifyISOStructure(t, isoBytes, tt.seed)
		})
	}
}

// verifyISOStructure reads the generated ISO and verifies its contents
func verifyISOStructure(t *testing.T, isoBytes []byte, s *Seed) {
	t.Helper()

	img, err := iso9660.OpenImage(bytes.NewReader(isoBytes))
	if err != nil {
		t.Fatalf("failed to open ISO image: %v", err)
	}

	volumeID, err := img.Label()
	if err != nil {
		t.Fatalf("failed to get volume label: %v", err)
	}
	if volumeID != VolumeLabel {
		t.Errorf("ISO volume identifier = %q, want %q", volumeID, VolumeLabel)
	}

	rootDir, err := img.RootDir()
	if err != nil {
		t.Fatalf("failed to get root directory: %v", err)
	}
	children, err := rootDir.GetChildren()
	if err != nil {
		t.Fatalf("failed to get children: %v", err)
	}

	generators := map[string]func(*Seed) (string, error){
		"user-data":      GenerateUserData,
		"meta-data":      GenerateMetaData,
		"network-config": GenerateNetworkConfig,
	}
	for filename, generate := range generators {
		var found *iso9660.File
		for _, child := range children {
			if child.Name() == filename {
				found = child
				break
			}
		}
		if found == nil {
			t.Errorf("required file %q not found in ISO", filename)
			continue
		}

		content, err := readISOFile(found)
		if err != nil {
			t.Errorf("failed to read %s: %v", filename, err)
			continue
		}
		expected, err := generate(s)
		if err != nil {
			t.Errorf("failed to generate expected %s: %v", filename, err)
			continue
		}
		if content != expected {
			t.Errorf("%s content mismatch:\ngot:\n%s\n\nwant:\n%s", filename, content, expected)
		}
	}

	if len(children) != 3 {
		t.Errorf("ISO contains %d files, want 3", len(children))
	}
}

// readISOFile reads the content of a file from the ISO image
func readISOFile(file *iso9660.File) (string, error) {
	content, err := io.ReadAll(file.Reader())
	if err != nil {
		return "", err
	}
	return string(content), nil
}
