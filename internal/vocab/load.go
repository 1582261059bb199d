package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// CorpusFiles are read in this order; ids follow first appearance.
var CorpusFiles = []string{"train.txt", "valid.txt", "test.txt"}

// JSONFile is the name of a precomputed vocabulary inside a corpus directory.
const JSONFile = "vocab.json"

// Load resolves path to a vocabulary. A directory is read as a corpus unless
// it contains vocab.json; any other path is decoded as a JSON word list.
func Load(path string) (*Vocabulary, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	if !st.IsDir() {
		return LoadJSON(path)
	}
	jsonPath := filepath.Join(path, JSONFile)
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadJSON(jsonPath)
	}
	return LoadCorpus(path)
}

// LoadCorpus builds a vocabulary from the train/valid/test splits in dir.
func LoadCorpus(dir string) (*Vocabulary, error) {
	v := New()
	for _, name := range CorpusFiles {
		path := filepath.Join(dir, name)
		if err := addFile(v, path); err != nil {
			return nil, fmt.Errorf("vocab: read %s: %w", path, err)
		}
	}
	return v, nil
}

func addFile(v *Vocabulary, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return addReader(v, f)
}

func addReader(v *Vocabulary, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			for _, w := range strings.Fields(line) {
				v.Add(w)
			}
			v.Add(EOS)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// LoadJSON reads an id-ordered JSON array of words.
func LoadJSON(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("vocab: decode %s: %w", path, err)
	}
	v, err := FromWords(words)
	if err != nil {
		return nil, fmt.Errorf("vocab: %s: %w", path, err)
	}
	return v, nil
}

// Save writes v as a JSON word list that LoadJSON reads back.
func Save(path string, v *Vocabulary) error {
	data, err := json.Marshal(v.Words())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
