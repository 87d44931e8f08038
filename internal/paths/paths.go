// Package paths is the path-management collaborator that sits outside the
// capture-and-sync core: it owns the temp/output/screenshots/chunks
// directories, and the core only ever reads from it.
package paths

import (
	"fmt"
	"path/filepath"

	"github.com/example/botcore/internal/config"
)

// Manager resolves the per-bot file-system layout used by capture, sync,
// and post-processing.
type Manager struct {
	root      string
	outDir    string
	shotsDir  string
	chunksDir string
	botID     string
}

func New(cfg *config.Config, botID string) *Manager {
	return &Manager{
		root:      cfg.Paths.Root,
		outDir:    cfg.Paths.OutDir,
		shotsDir:  cfg.Paths.ScreenshotDir,
		chunksDir: cfg.Paths.ChunksDir,
		botID:     botID,
	}
}

func (m *Manager) BotID() string { return m.botID }

func (m *Manager) TempDir() string      { return m.root }
func (m *Manager) OutDir() string       { return m.outDir }
func (m *Manager) ScreenshotDir() string { return m.shotsDir }
func (m *Manager) ChunksDir() string    { return m.chunksDir }

func (m *Manager) RawVideo() string  { return filepath.Join(m.root, "raw.mp4") }
func (m *Manager) RawAudio() string  { return filepath.Join(m.root, "raw.wav") }
func (m *Manager) Processed() string { return filepath.Join(m.root, "processed.wav") }
func (m *Manager) Silence() string   { return filepath.Join(m.root, "silence.wav") }
func (m *Manager) ConcatList() string {
	return filepath.Join(m.root, "concat_list.txt")
}
func (m *Manager) Merged() string { return filepath.Join(m.root, "merged.mp4") }

func (m *Manager) FinalVideo() string {
	return filepath.Join(m.outDir, m.botID+".mp4")
}

func (m *Manager) FinalAudio() string {
	return filepath.Join(m.outDir, m.botID+".wav")
}

func (m *Manager) Manifest() string {
	return filepath.Join(m.outDir, m.botID+"-manifest.yaml")
}

func (m *Manager) ChunkFile(index int) string {
	return filepath.Join(m.chunksDir, fmt.Sprintf("%s-%d.wav", m.botID, index))
}

func (m *Manager) ChunkPattern() string {
	return filepath.Join(m.chunksDir, m.botID+"-%d.wav")
}
