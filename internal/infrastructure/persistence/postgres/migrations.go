package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_questions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_sessions_and_attempts",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_achievements",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROFILES + XP HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id                  TEXT PRIMARY KEY,
    xp                       INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
    level                    INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
    streak_current           INTEGER NOT NULL DEFAULT 0 CHECK (streak_current >= 0),
    streak_longest           INTEGER NOT NULL DEFAULT 0 CHECK (streak_longest >= streak_current),
    last_activity_date       DATE,
    total_exams_taken        INTEGER NOT NULL DEFAULT 0,
    total_questions_answered INTEGER NOT NULL DEFAULT 0,
    created_at               TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Append-only XP audit trail. Rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS xp_history (
    id           BIGSERIAL PRIMARY KEY,
    user_id      TEXT NOT NULL REFERENCES profiles(user_id),
    old_xp       INTEGER NOT NULL,
    new_xp       INTEGER NOT NULL CHECK (new_xp >= old_xp),
    delta        INTEGER NOT NULL CHECK (delta > 0),
    reason       TEXT NOT NULL,
    reference_id TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_xp_history_user_time
    ON xp_history (user_id, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS xp_history;
DROP TABLE IF EXISTS profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: QUESTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS questions (
    id             TEXT PRIMARY KEY,
    exam_type      TEXT NOT NULL,
    domain         TEXT NOT NULL DEFAULT '',
    text           TEXT NOT NULL,
    options        JSONB NOT NULL,
    correct_answer TEXT NOT NULL CHECK (correct_answer IN ('A', 'B', 'C', 'D')),
    created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_questions_exam_type
    ON questions (exam_type);

CREATE INDEX IF NOT EXISTS idx_questions_exam_domain
    ON questions (exam_type, domain);
`

const migration002Down = `
DROP TABLE IF EXISTS questions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SESSIONS + ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    exam_type     TEXT NOT NULL,
    mode          TEXT NOT NULL CHECK (mode IN ('practice', 'study')),
    question_ids  JSONB NOT NULL,
    current_index INTEGER NOT NULL DEFAULT 0 CHECK (current_index >= 0),
    answers       JSONB NOT NULL DEFAULT '[]',
    correct_count INTEGER NOT NULL DEFAULT 0 CHECK (correct_count >= 0),
    status        TEXT NOT NULL DEFAULT 'in_progress'
                  CHECK (status IN ('in_progress', 'completed', 'abandoned')),
    started_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- At most one non-terminal session per user. Concurrent starts race on
-- this index instead of on a read-then-insert.
CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_one_active
    ON sessions (user_id) WHERE status = 'in_progress';

CREATE INDEX IF NOT EXISTS idx_sessions_user
    ON sessions (user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS attempts (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    exam_type        TEXT NOT NULL,
    mode             TEXT NOT NULL CHECK (mode IN ('practice', 'study')),
    total_questions  INTEGER NOT NULL CHECK (total_questions > 0),
    correct_answers  INTEGER NOT NULL CHECK (correct_answers BETWEEN 0 AND total_questions),
    score_percentage DOUBLE PRECISION NOT NULL,
    time_taken_ms    BIGINT NOT NULL DEFAULT 0,
    xp_earned        INTEGER NOT NULL DEFAULT 0 CHECK (xp_earned >= 0),
    idempotency_key  TEXT,
    created_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Retried submissions with the same client key hit this constraint and
-- get the original attempt back.
CREATE UNIQUE INDEX IF NOT EXISTS uq_attempts_idempotency
    ON attempts (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_attempts_user_time
    ON attempts (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_attempts_exam_time
    ON attempts (exam_type, created_at DESC);

-- Per-question breakdown, kept for domain-accuracy aggregation.
CREATE TABLE IF NOT EXISTS attempt_answers (
    attempt_id  TEXT NOT NULL REFERENCES attempts(id),
    question_id TEXT NOT NULL,
    answer      TEXT NOT NULL CHECK (answer IN ('A', 'B', 'C', 'D')),
    is_correct  BOOLEAN NOT NULL,
    answered_at TIMESTAMP WITH TIME ZONE NOT NULL,
    PRIMARY KEY (attempt_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_attempt_answers_question
    ON attempt_answers (question_id);
`

const migration003Down = `
DROP TABLE IF EXISTS attempt_answers;
DROP TABLE IF EXISTS attempts;
DROP TABLE IF EXISTS sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id                 TEXT PRIMARY KEY,
    code               TEXT NOT NULL UNIQUE,
    name               TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    criteria_type      TEXT NOT NULL,
    criteria_value     INTEGER NOT NULL CHECK (criteria_value > 0),
    criteria_exam_type TEXT NOT NULL DEFAULT '',
    xp_reward          INTEGER NOT NULL DEFAULT 0 CHECK (xp_reward >= 0)
);

-- Exactly-once awards: the primary key is the correctness mechanism under
-- concurrent evaluation, not application-level checks.
CREATE TABLE IF NOT EXISTS earned_achievements (
    user_id        TEXT NOT NULL,
    achievement_id TEXT NOT NULL REFERENCES achievements(id),
    earned_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_earned_achievements_user
    ON earned_achievements (user_id, earned_at DESC);

INSERT INTO achievements (id, code, name, description, criteria_type, criteria_value, criteria_exam_type, xp_reward) VALUES
    ('ach-first-steps',    'first_steps',    'First Steps',    'Complete your first quiz',                       'quiz_count',          1,   '', 50),
    ('ach-getting-there',  'getting_there',  'Getting There',  'Complete 10 quizzes',                            'quiz_count',          10,  '', 100),
    ('ach-half-century',   'half_century',   'Half Century',   'Complete 50 quizzes',                            'quiz_count',          50,  '', 250),
    ('ach-centurion',      'centurion',      'Centurion',      'Complete 100 quizzes',                           'quiz_count',          100, '', 500),
    ('ach-flawless',       'flawless',       'Flawless',       'Score 100% on a quiz',                           'perfect_score',       1,   '', 100),
    ('ach-perfectionist',  'perfectionist',  'Perfectionist',  'Score 100% on 10 quizzes',                       'perfect_score',       10,  '', 300),
    ('ach-week-streak',    'week_streak',    'Week Streak',    'Practice 7 days in a row',                       'streak_length',       7,   '', 150),
    ('ach-month-streak',   'month_streak',   'Month Streak',   'Practice 30 days in a row',                      'streak_length',       30,  '', 500),
    ('ach-domain-expert',  'domain_expert',  'Domain Expert',  'Reach 90% average accuracy in any exam domain',  'domain_accuracy',     90,  '', 200),
    ('ach-level-5',        'level_5',        'Rising Star',    'Reach level 5',                                  'level_reached',       5,   '', 150),
    ('ach-level-10',       'level_10',       'Veteran',        'Reach level 10',                                 'level_reached',       10,  '', 400),
    ('ach-thousand-q',     'thousand_q',     'Question Devourer', 'Answer 1000 questions',                       'question_count',      1000,'', 300)
ON CONFLICT (id) DO NOTHING;
`

const migration004Down = `
DROP TABLE IF EXISTS earned_achievements;
DROP TABLE IF EXISTS achievements;
`
