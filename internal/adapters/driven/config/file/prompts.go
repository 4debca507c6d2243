package file

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves prompt templates from <config dir>/prompts. Missing
// files are created from the built-in defaults on first Load; an edited file
// whose placeholders no longer match its default is ignored.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptSummarise: `Summarise the following requirement document in 2-3 sentences.
State what the document changes or specifies. Do not add commentary.

Document:
%s

Summary:`,

	driven.PromptClassifyChange: `You are reviewing a change to the requirements of the business journey "%s".
Below are the changed hunks between two document versions, with surrounding context.

%s

Classify the change as one of:
- functional: behaviour, limits, rules, flows or data requirements changed
- cosmetic: wording, formatting or typos changed without altering meaning
- mixed: both functional and cosmetic changes are present

Respond with a JSON object only:
{"classification": "functional|cosmetic|mixed", "rationale": "...", "affects_tests": true|false, "recommendation": "..."}`,

	driven.PromptGenerateTests: `Generate %d QA test cases for the business journey "%s" from the requirement excerpts below.
Cover positive, negative and boundary behaviour that the excerpts state explicitly.

Requirements:
%s

Respond with a JSON array only. Each element:
{"test_id": "TC-001", "title": "...", "description": "...", "preconditions": ["..."], "test_steps": ["..."], "expected_results": ["..."], "test_data": "...", "priority": "High|Medium|Low", "test_type": "Functional|Negative|Boundary"}`,

	driven.PromptFactCheck: `Decide whether the evidence supports the claim.

Claim: %s

Evidence:
%s

Respond with a JSON object only:
{"verdict": "supported|contradicted|insufficient_evidence", "answer": "...", "confidence": 0.0-1.0}`,
}

// NewPromptStore returns a store rooted at promptDir, or ~/.traceq/prompts
// when empty. Nothing is written until the first Load.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".traceq", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the template for name, falling back to the built-in default
// when the file is missing, unreadable or has the wrong placeholders.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	def, known := defaultPrompts[name]
	if s.initErr != nil {
		if known {
			return def, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.loadFromFile(name)
	switch {
	case err != nil && known:
		return def, nil
	case err != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case known && !slices.Equal(placeholders(prompt), placeholders(def)):
		logger.Warn("prompt placeholders changed, using default",
			"prompt", name, "want", strings.Join(placeholders(def), " "))
		prompt = def
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload drops cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// placeholders lists the fmt verbs of a template in order. "%%" is literal.
func placeholders(tmpl string) []string {
	var verbs []string
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '%' {
			continue
		}
		i++
		if tmpl[i] != '%' {
			verbs = append(verbs, "%"+string(tmpl[i]))
		}
	}
	return verbs
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# traceq Prompts

This directory contains customisable prompts used by traceq's LLM features.

## Files

- ` + "`summarise.txt`" + ` - Version summary recorded at ingest
- ` + "`classify_change.txt`" + ` - Change classification between two versions
- ` + "`generate_tests.txt`" + ` - QA test case generation
- ` + "`fact_check.txt`" + ` - Claim verification against retrieved evidence

## Customisation

Edit any file to customise LLM behaviour. Changes take effect on the next
command, or after ` + "`prompts reload`" + ` in a running MCP server.

## Format Placeholders

Prompts use Go fmt placeholders:
- ` + "`%s`" + ` - String (journey, document text, hunks, context, claim)
- ` + "`%d`" + ` - Integer (number of test cases)

Keep the placeholders, in the same order, when editing. A file whose
placeholders differ from the default is ignored and the default is used.
`
	return os.WriteFile(path, []byte(content), 0600)
}
