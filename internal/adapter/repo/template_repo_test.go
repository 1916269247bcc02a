package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"facestudio/internal/domain"
	"facestudio/internal/sqlinline"
)

type stubExecutor struct {
	row      stubRow
	queries  []string
	lastArgs []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, query)
	s.lastArgs = args
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *int64:
			*ptr = r.values[i].(int64)
		case *int:
			*ptr = r.values[i].(int)
		case *string:
			*ptr = r.values[i].(string)
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func templateRow(id int64, group int, face, pair string) stubRow {
	return stubRow{values: []any{id, group, face, pair, "https://t/img.jpg", "", ""}}
}

func TestTemplateGetByID(t *testing.T) {
	exec := &stubExecutor{row: templateRow(7, 2, "wide", "summer")}
	repo := NewTemplateRepository(exec)

	tpl, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tpl.ID != 7 || tpl.GroupType != domain.GroupTypeCouple || tpl.FaceType != "wide" || tpl.PairKey != "summer" {
		t.Fatalf("template = %+v", tpl)
	}
	if exec.queries[0] != sqlinline.QSelectTemplateByID {
		t.Fatalf("unexpected query")
	}
}

func TestTemplateGetByIDNotFound(t *testing.T) {
	repo := NewTemplateRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	if _, err := repo.GetByID(context.Background(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTemplateFindSibling(t *testing.T) {
	exec := &stubExecutor{row: templateRow(8, 1, "narrow", "summer")}
	repo := NewTemplateRepository(exec)
	src := &domain.Template{ID: 7, GroupType: domain.GroupTypeSingle, FaceType: "wide", PairKey: "summer"}

	sibling, err := repo.FindSibling(context.Background(), src, "narrow")
	if err != nil {
		t.Fatalf("find sibling: %v", err)
	}
	if sibling.ID != 8 || sibling.FaceType != "narrow" {
		t.Fatalf("sibling = %+v", sibling)
	}
	wantArgs := []any{"summer", 1, "narrow", int64(7)}
	if len(exec.lastArgs) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", exec.lastArgs, wantArgs)
	}
	for i := range wantArgs {
		if exec.lastArgs[i] != wantArgs[i] {
			t.Fatalf("args[%d] = %v, want %v", i, exec.lastArgs[i], wantArgs[i])
		}
	}
}

func TestTemplateFindSiblingWithoutPairKey(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewTemplateRepository(exec)
	_, err := repo.FindSibling(context.Background(), &domain.Template{ID: 1}, "wide")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(exec.queries) != 0 {
		t.Fatalf("queries = %d, want 0", len(exec.queries))
	}
}

func TestTemplateFindSiblingQueryError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := NewTemplateRepository(&stubExecutor{row: stubRow{err: boom}})
	_, err := repo.FindSibling(context.Background(), &domain.Template{ID: 1, PairKey: "p"}, "wide")
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want wrapped query error", err)
	}
}
