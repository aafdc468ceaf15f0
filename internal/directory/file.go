package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/t77yq/coastal-alert/internal/model"
)

type recipientFile struct {
	Recipients []model.Recipient `yaml:"recipients"`
}

// FileDirectory reads recipients from a YAML file on every call, so edits
// take effect without a restart
type FileDirectory struct {
	path string
}

// NewFileDirectory creates a directory backed by path and checks that it parses
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{path: path}
	if _, err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDirectory) load() ([]model.Recipient, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients file: %w", err)
	}

	var f recipientFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse recipients file: %w", err)
	}

	for i, r := range f.Recipients {
		if r.ID == "" {
			return nil, fmt.Errorf("recipient %d has no id", i)
		}
	}
	return f.Recipients, nil
}

// ListAll returns every recipient in the file
func (d *FileDirectory) ListAll(_ context.Context) ([]model.Recipient, error) {
	return d.load()
}

// ListByZone returns recipients whose zone matches, ignoring case
func (d *FileDirectory) ListByZone(_ context.Context, zone string) ([]model.Recipient, error) {
	all, err := d.load()
	if err != nil {
		return nil, err
	}

	var out []model.Recipient
	for _, r := range all {
		if sameZone(r.Zone, zone) {
			out = append(out, r)
		}
	}
	return out, nil
}
