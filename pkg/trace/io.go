package trace

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/strata-gfx/strata/pkg/errors"
)

// WriteTransactions writes a transaction stream as JSON lines, one
// transaction per line.
func WriteTransactions(w io.Writer, txs []Transaction) error {
	enc := json.NewEncoder(w)
	for _, tx := range txs {
		if err := enc.Encode(tx); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode transaction %q", tx.Name)
		}
	}
	return nil
}

// ReadTransactions reads a JSON-lines transaction stream. Blank lines are
// skipped.
func ReadTransactions(r io.Reader) ([]Transaction, error) {
	var out []Transaction
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTransaction, err, "line %d", line)
		}
		out = append(out, tx)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTransaction, err, "read transaction stream")
	}
	return out, nil
}

// ExportTransactions writes a transaction stream to a file.
func ExportTransactions(path string, txs []Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", path)
	}
	defer f.Close()
	if err := WriteTransactions(f, txs); err != nil {
		return err
	}
	return f.Close()
}

// ImportTransactions reads a transaction stream from a file.
func ImportTransactions(path string) ([]Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s", path)
	}
	defer f.Close()
	return ReadTransactions(f)
}

// WriteSnapshot writes a snapshot as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot")
	}
	return nil
}

// ReadSnapshot parses a snapshot from JSON.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode snapshot")
	}
	return snap, nil
}
