package io

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/afcplot/pkg/analysis"
	"github.com/matzehuels/afcplot/pkg/errors"
)

// ReadTrials decodes a trial table from r.
//
// Three layouts are accepted:
//   - a JSON array of trial records (pandas' orient="records")
//   - an object with a "trials" array
//   - JSON Lines, one record per line
//
// ReadTrials does not close r.
func ReadTrials(r io.Reader) ([]analysis.Trial, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read trials")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "trial table is empty")
	}

	switch data[0] {
	case '[':
		var trials []analysis.Trial
		if err := json.Unmarshal(data, &trials); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode trials")
		}
		return trials, nil
	case '{':
		var doc struct {
			Trials []analysis.Trial `json:"trials"`
		}
		if err := json.Unmarshal(data, &doc); err == nil && doc.Trials != nil {
			return doc.Trials, nil
		}
	}
	return readLines(data)
}

func readLines(data []byte) ([]analysis.Trial, error) {
	var trials []analysis.Trial
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var t analysis.Trial
		if err := json.Unmarshal(b, &t); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode trial on line %d", line)
		}
		trials = append(trials, t)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "scan trials")
	}
	return trials, nil
}

// ImportTrials reads the trial table at path. See [ReadTrials] for the
// accepted layouts.
func ImportTrials(path string) ([]analysis.Trial, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "trial table %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadTrials(f)
}
