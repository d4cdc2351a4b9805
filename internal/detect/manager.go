package detect

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/othala/internal/vault"
)

// Mode selects which detector, if any, is active.
type Mode string

const (
	ModeOff        Mode = "off"
	ModeRegex      Mode = "regex"
	ModeDictionary Mode = "dictionary"
)

// Settings is the full detection configuration. Exactly one detector runs at
// a time, chosen by Mode.
type Settings struct {
	Mode       Mode
	Dictionary DictionarySettings
	RegexRules []RegexRule
}

// Manager owns the active detector and swaps it wholesale on settings
// changes, so in-flight detections always see a consistent configuration.
type Manager struct {
	corpus vault.Corpus
	keyFor func(linkText string) string
	logger *slog.Logger

	mu      sync.RWMutex
	mode    Mode
	dict    *Dictionary
	regexes *Regexes
}

// NewManager builds a manager with the given settings. In dictionary mode the
// phrase trie is built before returning.
func NewManager(corpus vault.Corpus, keyFor func(string) string, logger *slog.Logger, settings Settings) (*Manager, error) {
	m := &Manager{corpus: corpus, keyFor: keyFor, logger: logger}
	if err := m.UpdateSettings(settings); err != nil {
		return nil, err
	}
	return m, nil
}

// Mode returns the active detection mode.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// UpdateSettings replaces the active detector. The new detector is fully
// constructed (rules compiled, trie built) before the swap; on error the
// previous configuration stays active.
func (m *Manager) UpdateSettings(settings Settings) error {
	var (
		dict    *Dictionary
		regexes *Regexes
	)
	switch settings.Mode {
	case ModeOff:
	case ModeDictionary:
		dict = NewDictionary(m.corpus, m.keyFor, settings.Dictionary)
		if err := dict.Build(); err != nil {
			return err
		}
	case ModeRegex:
		var err error
		regexes, err = NewRegexes(settings.RegexRules)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("detect: unknown mode %q", settings.Mode)
	}

	m.mu.Lock()
	m.mode = settings.Mode
	m.dict = dict
	m.regexes = regexes
	m.mu.Unlock()

	if dict != nil {
		m.logger.Info("detection dictionary built", slog.Int("phrases", dict.PhraseCount()))
	}
	return nil
}

// Rebuild refreshes detector state from the corpus. Only the dictionary
// carries corpus-derived state; in other modes this is a no-op.
func (m *Manager) Rebuild() error {
	m.mu.RLock()
	dict := m.dict
	m.mu.RUnlock()

	if dict == nil {
		return nil
	}
	return dict.Build()
}

// Detect scans text from the given file and returns accepted, non-overlapping
// detections in start order. Off mode returns nil.
func (m *Manager) Detect(path, text string) []Detection {
	m.mu.RLock()
	mode, dict, regexes := m.mode, m.dict, m.regexes
	m.mu.RUnlock()

	switch mode {
	case ModeDictionary:
		return ResolveOverlaps(dict.Detect(path, text))
	case ModeRegex:
		return ResolveOverlaps(regexes.Detect(path, text))
	default:
		return nil
	}
}
