package storage

import "context"

// Exec ejecuta SQL arbitrario (solo tests).
func (s *SQLiteStorage) Exec(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, query)
	return err
}
