package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain"
)

const defaultPageSize = 50

// CountDocuments returns the number of indexed documents via FT.SEARCH with LIMIT 0 0.
func (s *Store) CountDocuments(ctx context.Context, idx string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(idx, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, db.ErrIndexNotFound
		}
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// ScanDocuments snapshots every document key before reading any text.
// Writing a vector re-indexes the document, so paging while writing could skip or repeat keys.
// The Redis key is the document key; q.KeyField is not consulted.
func (s *Store) ScanDocuments(ctx context.Context, q db.ScanQuery, fn func(domain.Document) error) error {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	storage, err := s.Layout(ctx, q.Index)
	if err != nil {
		return err
	}
	keys, err := s.collectKeys(ctx, q.Index, pageSize)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += pageSize {
		page := keys[start:min(start+pageSize, len(keys))]
		texts, err := s.fetchTexts(ctx, storage, page, q.TextField)
		if err != nil {
			return err
		}
		for i, key := range page {
			if err := fn(domain.Document{Key: key, Text: texts[i]}); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectKeys reads all document keys through an FT.AGGREGATE cursor.
func (s *Store) collectKeys(ctx context.Context, idx string, pageSize int) ([]string, error) {
	count := strconv.Itoa(pageSize)
	cmd := s.b().Arbitrary("FT.AGGREGATE").
		Args(idx, "*", "LOAD", "1", "@__key", "WITHCURSOR", "COUNT", count).
		Build()
	op := db.OpAggregate

	var keys []string
	for {
		raw, err := s.do(ctx, cmd).ToArray()
		if err != nil {
			if isUnknownIndex(err) {
				return nil, db.ErrIndexNotFound
			}
			return nil, &db.Error{Op: op, Err: err}
		}
		if len(raw) != 2 {
			return nil, &db.Error{Op: op, Err: fmt.Errorf("unexpected reply length %d", len(raw))}
		}

		rows, err := raw[0].ToArray()
		if err != nil {
			return nil, &db.Error{Op: op, Err: fmt.Errorf("parse rows: %w", err)}
		}
		keys = append(keys, parseKeyRows(rows)...)

		cursor, err := raw[1].AsInt64()
		if err != nil {
			return nil, &db.Error{Op: op, Err: fmt.Errorf("parse cursor: %w", err)}
		}
		if cursor == 0 {
			return keys, nil
		}

		cmd = s.b().Arbitrary("FT.CURSOR").
			Args("READ", idx, strconv.FormatInt(cursor, 10), "COUNT", count).
			Build()
		op = db.OpCursorRead
	}
}

// parseKeyRows reads [total, [__key, k1], [__key, k2], ...].
func parseKeyRows(rows []rueidis.RedisMessage) []string {
	if len(rows) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		pairs, err := row.ToArray()
		if err != nil {
			continue
		}
		if key := parseFieldPairs(pairs)["__key"]; key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// fetchTexts reads one field of each key in a single DoMulti round-trip.
// Missing keys and fields read as empty text.
func (s *Store) fetchTexts(ctx context.Context, storage db.StorageType, keys []string, field string) ([]string, error) {
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		if storage == db.StorageJSON {
			cmds[i] = s.b().Arbitrary("JSON.GET").Keys(key).Args("$." + field).Build()
		} else {
			cmds[i] = s.b().Hmget().Key(key).Field(field).Build()
		}
	}

	texts := make([]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		var (
			text string
			err  error
		)
		if storage == db.StorageJSON {
			text, err = jsonText(res)
		} else {
			text, err = hashText(res)
		}
		if err != nil {
			return nil, &db.Error{Op: readOp(storage), Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		texts[i] = text
	}
	return texts, nil
}

func readOp(storage db.StorageType) string {
	if storage == db.StorageJSON {
		return db.OpJSONGet
	}
	return db.OpHMGet
}

func hashText(res rueidis.RedisResult) (string, error) {
	vals, err := res.ToArray()
	if err != nil {
		return "", err
	}
	if len(vals) == 0 || vals[0].IsNil() {
		return "", nil
	}
	return vals[0].ToString()
}

// jsonText reads a JSON.GET $.field reply, which wraps matches in an array.
func jsonText(res rueidis.RedisResult) (string, error) {
	raw, err := res.ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", err
	}
	var matches []any
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &matches); err != nil {
		return "", fmt.Errorf("decode JSON.GET reply: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	text, _ := matches[0].(string)
	return text, nil
}

// MergeDocuments writes each vector into its document without touching other fields.
// Hash documents get a FLOAT32 little-endian blob, JSON documents a number array.
func (s *Store) MergeDocuments(ctx context.Context, idx, _ string, patches []domain.VectorPatch) error {
	if len(patches) == 0 {
		return nil
	}
	storage, err := s.Layout(ctx, idx)
	if err != nil {
		return err
	}

	cmds := make(rueidis.Commands, len(patches))
	for i, p := range patches {
		if storage == db.StorageJSON {
			data, err := sonic.ConfigStd.MarshalToString(p.Vector)
			if err != nil {
				return fmt.Errorf("encode vector for %s: %w", p.Key, err)
			}
			cmds[i] = s.b().Arbitrary("JSON.SET").Keys(p.Key).Args("$."+p.Field, data).Build()
		} else {
			cmds[i] = s.b().Hset().Key(p.Key).FieldValue().FieldValue(p.Field, vectorToBytes(p.Vector)).Build()
		}
	}

	op := db.OpHSet
	if storage == db.StorageJSON {
		op = db.OpJSONSet
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: op, Err: fmt.Errorf("key %s: %w", patches[i].Key, err)}
		}
	}
	return nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
