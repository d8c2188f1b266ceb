package cache

// schemaVersion is bumped whenever the table layout changes. Opening a
// cache.db written with a different version drops everything and lets the
// next sync rebuild from the primary store.
const schemaVersion = "1"

const schema = `
-- Metadata table (loro_version, schema_version)
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Decisions
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    status TEXT NOT NULL,
    context TEXT,
    superseded_by TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS decisions_fts USING fts5(
    id, title, content, context, tags,
    content='decisions',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS decisions_ai AFTER INSERT ON decisions BEGIN
    INSERT INTO decisions_fts(rowid, id, title, content, context, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.context, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS decisions_ad AFTER DELETE ON decisions BEGIN
    INSERT INTO decisions_fts(decisions_fts, rowid, id, title, content, context, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.context, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS decisions_au AFTER UPDATE ON decisions BEGIN
    INSERT INTO decisions_fts(decisions_fts, rowid, id, title, content, context, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.context, old.tags);
    INSERT INTO decisions_fts(rowid, id, title, content, context, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.context, new.tags);
END;

-- Tasks
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    status TEXT NOT NULL,
    priority TEXT NOT NULL,
    due_date TEXT,
    assignee TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
    id, title, content, tags,
    content='tasks',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS tasks_ai AFTER INSERT ON tasks BEGIN
    INSERT INTO tasks_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS tasks_ad AFTER DELETE ON tasks BEGIN
    INSERT INTO tasks_fts(tasks_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS tasks_au AFTER UPDATE ON tasks BEGIN
    INSERT INTO tasks_fts(tasks_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
    INSERT INTO tasks_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

-- Notes
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    note_type TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    id, title, content, tags,
    content='notes',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS notes_ai AFTER INSERT ON notes BEGIN
    INSERT INTO notes_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS notes_ad AFTER DELETE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS notes_au AFTER UPDATE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
    INSERT INTO notes_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

-- Prompts
CREATE TABLE IF NOT EXISTS prompts (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    template TEXT,
    variables TEXT,
    output_schema TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
    id, title, content, template, tags,
    content='prompts',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS prompts_ai AFTER INSERT ON prompts BEGIN
    INSERT INTO prompts_fts(rowid, id, title, content, template, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.template, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS prompts_ad AFTER DELETE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, id, title, content, template, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.template, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS prompts_au AFTER UPDATE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, id, title, content, template, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.template, old.tags);
    INSERT INTO prompts_fts(rowid, id, title, content, template, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.template, new.tags);
END;

-- Components
CREATE TABLE IF NOT EXISTS components (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    component_type TEXT,
    status TEXT NOT NULL,
    owner TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS components_fts USING fts5(
    id, title, content, tags,
    content='components',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS components_ai AFTER INSERT ON components BEGIN
    INSERT INTO components_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS components_ad AFTER DELETE ON components BEGIN
    INSERT INTO components_fts(components_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS components_au AFTER UPDATE ON components BEGIN
    INSERT INTO components_fts(components_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
    INSERT INTO components_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

-- Links
CREATE TABLE IF NOT EXISTS links (
    id TEXT PRIMARY KEY,
    sequence_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    url TEXT NOT NULL,
    link_type TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    created_by TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS links_fts USING fts5(
    id, title, content, tags,
    content='links',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS links_ai AFTER INSERT ON links BEGIN
    INSERT INTO links_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS links_ad AFTER DELETE ON links BEGIN
    INSERT INTO links_fts(links_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS links_au AFTER UPDATE ON links BEGIN
    INSERT INTO links_fts(links_fts, rowid, id, title, content, tags)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.tags);
    INSERT INTO links_fts(rowid, id, title, content, tags)
    VALUES (new.rowid, new.id, new.title, new.content, new.tags);
END;

-- Relations
CREATE TABLE IF NOT EXISTS relations (
    composite_key TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    source_type TEXT NOT NULL,
    target_id TEXT NOT NULL,
    target_type TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    created_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
`

// entityTables lists the six per-kind entity tables that Clear empties;
// their FTS tables follow through the delete triggers. The schema-version
// drop path uses allTables instead.
var entityTables = []string{"decisions", "tasks", "notes", "prompts", "components", "links"}

var allTables = []string{
	"decisions", "decisions_fts",
	"tasks", "tasks_fts",
	"notes", "notes_fts",
	"prompts", "prompts_fts",
	"components", "components_fts",
	"links", "links_fts",
	"relations",
	"meta",
}
