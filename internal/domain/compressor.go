package domain

import "time"

// ArchiveFile is a dump file to be packed. Name is the entry name inside the
// archive and Database the true database name it was dumped from.
type ArchiveFile struct {
	Path     string
	Name     string
	Database string
}

type ArchivedDatabase struct {
	File     string `yaml:"file"`
	Database string `yaml:"database"`
}

// ArchiveMetadata is stored next to the dumps so a restore never has to guess
// a database name from its file name.
type ArchiveMetadata struct {
	RunID     string             `yaml:"run_id"`
	CreatedAt time.Time          `yaml:"created_at"`
	Host      string             `yaml:"host,omitempty"`
	Databases []ArchivedDatabase `yaml:"databases"`
}

// Lookup returns the database recorded for an archive entry name.
func (m *ArchiveMetadata) Lookup(file string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, db := range m.Databases {
		if db.File == file {
			return db.Database, true
		}
	}
	return "", false
}

type Archiver interface {
	Pack(archivePath string, files []ArchiveFile, meta *ArchiveMetadata) error
	// Unpack extracts archivePath into destDir. The returned metadata is nil
	// for archives written without it.
	Unpack(archivePath, destDir string) (*ArchiveMetadata, error)
}
