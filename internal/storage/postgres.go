package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
)

// DB is the subset of pgxpool.Pool the store uses; tests substitute a
// pgxmock pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreWithDB wires a custom DB implementation (tests).
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return nil
}

// --- Face profiles ---

// Register inserts a new identity. A duplicate person_id is a conflict,
// reported as an error to the caller.
func (s *PostgresStore) Register(ctx context.Context, id *models.Identity) (string, error) {
	vec := pgvector.NewVector(id.Embedding)
	_, err := s.db.Exec(ctx,
		`INSERT INTO face_profiles (person_id, name, role, department, employee_id, email, face_embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id.PersonID, id.Name, id.Role, id.Department, id.EmployeeID, id.Email, vec, id.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("register profile: %w", err)
	}
	return id.PersonID, nil
}

func (s *PostgresStore) Get(ctx context.Context, personID string) (*models.Identity, error) {
	id := &models.Identity{}
	err := s.db.QueryRow(ctx,
		`SELECT person_id, name, role, department, employee_id, email, created_at
		 FROM face_profiles WHERE person_id = $1`, personID,
	).Scan(&id.PersonID, &id.Name, &id.Role, &id.Department, &id.EmployeeID, &id.Email, &id.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT person_id, name, role, department, employee_id, email, created_at
		 FROM face_profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.PersonID, &id.Name, &id.Role, &id.Department,
			&id.EmployeeID, &id.Email, &id.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, id)
	}
	return profiles, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, personID string, name, department, employeeID, email string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE face_profiles SET name = $1, department = $2, employee_id = $3, email = $4
		 WHERE person_id = $5`,
		name, department, employeeID, email, personID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, personID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM face_profiles WHERE person_id = $1`, personID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// Match finds candidate identities for an embedding, ordered descending
// by cosine similarity. An empty result means no match; banding is the
// classifier's job, so no threshold is applied here.
func (s *PostgresStore) Match(ctx context.Context, embedding []float32) ([]models.Match, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT person_id, name, role, department, 1 - (face_embedding <=> $1) AS confidence
		 FROM face_profiles
		 ORDER BY face_embedding <=> $1
		 LIMIT 5`, vec)
	if err != nil {
		return nil, fmt.Errorf("match embedding: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.PersonID, &m.Name, &m.Role, &m.Department, &m.Confidence); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// --- Attendance sessions ---

func (s *PostgresStore) GetActiveSession(ctx context.Context, personID string) (*models.Session, error) {
	sess := &models.Session{}
	err := s.db.QueryRow(ctx,
		`SELECT session_uuid, person_id, status, arrival_time, last_seen_at, departure_time
		 FROM attendance_sessions WHERE person_id = $1 AND status = 'active'`, personID,
	).Scan(&sess.ID, &sess.PersonID, &sess.Status, &sess.ArrivalTime, &sess.LastSeenAt, &sess.DepartureTime)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sess *models.Session) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO attendance_sessions (session_uuid, person_id, status, arrival_time, last_seen_at, departure_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_uuid) DO UPDATE SET
		   status = EXCLUDED.status,
		   last_seen_at = EXCLUDED.last_seen_at,
		   departure_time = EXCLUDED.departure_time`,
		sess.ID, sess.PersonID, sess.Status, sess.ArrivalTime, sess.LastSeenAt, sess.DepartureTime)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID string, departure time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE attendance_sessions SET status = 'ended', departure_time = $1
		 WHERE session_uuid = $2 AND status = 'active'`,
		departure, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_uuid, person_id, status, arrival_time, last_seen_at, departure_time
		 FROM attendance_sessions WHERE status = 'active' ORDER BY arrival_time`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.PersonID, &sess.Status,
			&sess.ArrivalTime, &sess.LastSeenAt, &sess.DepartureTime); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// AttendanceFilter narrows the attendance report.
type AttendanceFilter struct {
	PersonID string
	Name     string
	Minutes  int
	Limit    int
}

// AttendanceRecord is one row of the attendance report, joined with the
// identity's display fields.
type AttendanceRecord struct {
	SessionID     string               `json:"session_id"`
	PersonID      string               `json:"person_id"`
	Name          string               `json:"name"`
	Role          models.Role          `json:"role"`
	Department    string               `json:"department"`
	Status        models.SessionStatus `json:"status"`
	ArrivalTime   time.Time            `json:"arrival_time"`
	LastSeenAt    time.Time            `json:"last_seen_at"`
	DepartureTime *time.Time           `json:"departure_time,omitempty"`
}

func (s *PostgresStore) QueryAttendance(ctx context.Context, f AttendanceFilter) ([]AttendanceRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 500 {
		f.Limit = 500
	}

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if f.PersonID != "" {
		baseWhere += fmt.Sprintf(" AND s.person_id = $%d", argIdx)
		args = append(args, f.PersonID)
		argIdx++
	}
	if f.Name != "" {
		baseWhere += fmt.Sprintf(" AND p.name ILIKE $%d", argIdx)
		args = append(args, "%"+f.Name+"%")
		argIdx++
	}
	if f.Minutes > 0 {
		baseWhere += fmt.Sprintf(" AND s.arrival_time >= NOW() - ($%d || ' minutes')::interval", argIdx)
		args = append(args, f.Minutes)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT s.session_uuid, s.person_id, COALESCE(p.name, ''), COALESCE(p.role, ''), COALESCE(p.department, ''),
		        s.status, s.arrival_time, s.last_seen_at, s.departure_time
		 FROM attendance_sessions s
		 LEFT JOIN face_profiles p ON p.person_id = s.person_id
		 %s ORDER BY s.arrival_time DESC LIMIT $%d`,
		baseWhere, argIdx)
	args = append(args, f.Limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.SessionID, &r.PersonID, &r.Name, &r.Role, &r.Department,
			&r.Status, &r.ArrivalTime, &r.LastSeenAt, &r.DepartureTime); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

// AttendanceSummary is the headline view of the attendance report.
type AttendanceSummary struct {
	Active       int      `json:"active"`
	Today        int      `json:"today"`
	Week         int      `json:"week"`
	ActivePeople []string `json:"active_people"`
}

func (s *PostgresStore) Summary(ctx context.Context) (*AttendanceSummary, error) {
	sum := &AttendanceSummary{}

	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = 'active'),
		   COUNT(*) FILTER (WHERE arrival_time >= date_trunc('day', NOW())),
		   COUNT(*) FILTER (WHERE arrival_time >= NOW() - interval '7 days')
		 FROM attendance_sessions`,
	).Scan(&sum.Active, &sum.Today, &sum.Week)
	if err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT COALESCE(p.name, s.person_id)
		 FROM attendance_sessions s
		 LEFT JOIN face_profiles p ON p.person_id = s.person_id
		 WHERE s.status = 'active' ORDER BY s.arrival_time`)
	if err != nil {
		return nil, fmt.Errorf("list active people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan active person: %w", err)
		}
		sum.ActivePeople = append(sum.ActivePeople, name)
	}
	return sum, nil
}

// ClearAttendance ends every active session immediately. Used by the
// explicit clear operation, not by the sweeper.
func (s *PostgresStore) ClearAttendance(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE attendance_sessions SET status = 'ended', departure_time = last_seen_at
		 WHERE status = 'active'`)
	if err != nil {
		return 0, fmt.Errorf("clear attendance: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Recognition log ---

func (s *PostgresStore) InsertRecognitionLog(ctx context.Context, entry models.RecognitionLog) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO recognition_logs (person_id, recognized_name, confidence, image_source, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.PersonID, entry.RecognizedName, entry.Confidence, entry.ImageSource, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recognition log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecognitionLogs(ctx context.Context, personID string, limit int) ([]models.RecognitionLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if personID != "" {
		rows, err = s.db.Query(ctx,
			`SELECT person_id, recognized_name, confidence, image_source, created_at
			 FROM recognition_logs WHERE person_id = $1 ORDER BY created_at DESC LIMIT $2`,
			personID, limit)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT person_id, recognized_name, confidence, image_source, created_at
			 FROM recognition_logs ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list recognition logs: %w", err)
	}
	defer rows.Close()

	var logs []models.RecognitionLog
	for rows.Next() {
		var entry models.RecognitionLog
		if err := rows.Scan(&entry.PersonID, &entry.RecognizedName, &entry.Confidence,
			&entry.ImageSource, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recognition log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
