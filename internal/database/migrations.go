package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    is_admin INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT DEFAULT '',
    customer TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_access (
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, project_id)
);

CREATE TABLE IF NOT EXISTS report_languages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    language_code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    language_id INTEGER NOT NULL REFERENCES report_languages(id),
    title TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS report_scopes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    asset TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS report_sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL,
    hide INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS playbooks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    structure TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS test_procedures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS vulnerability_templates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    rating TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS report_section_playbooks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id INTEGER NOT NULL REFERENCES report_sections(id) ON DELETE CASCADE,
    playbook_id INTEGER REFERENCES playbooks(id) ON DELETE SET NULL,
    name TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    UNIQUE (section_id, playbook_id)
);

CREATE TABLE IF NOT EXISTS playbook_sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_playbook_id INTEGER REFERENCES report_section_playbooks(id) ON DELETE CASCADE,
    parent_id INTEGER REFERENCES playbook_sections(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL,
    CHECK ((section_playbook_id IS NULL) <> (parent_id IS NULL))
);

CREATE TABLE IF NOT EXISTS report_procedures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    playbook_section_id INTEGER NOT NULL REFERENCES playbook_sections(id) ON DELETE CASCADE,
    source_template_id INTEGER REFERENCES test_procedures(id) ON DELETE SET NULL,
    name TEXT NOT NULL,
    objective TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vulnerabilities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id INTEGER NOT NULL REFERENCES report_sections(id) ON DELETE CASCADE,
    source_template_id INTEGER REFERENCES vulnerability_templates(id) ON DELETE SET NULL,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    rating TEXT NOT NULL DEFAULT '',
    measures TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'draft',
    sort_order INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS report_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
    version REAL NOT NULL,
    status TEXT NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    report_date DATETIME,
    creation_status TEXT NOT NULL DEFAULT 'scheduled',
    status_changed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    json_object TEXT,
    pdf BLOB,
    pdf_log BLOB,
    tex BLOB,
    xlsx BLOB,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (report_id, version)
);

CREATE INDEX IF NOT EXISTS idx_reports_project ON reports(project_id);
CREATE INDEX IF NOT EXISTS idx_scopes_report ON report_scopes(report_id);
CREATE INDEX IF NOT EXISTS idx_sections_report ON report_sections(report_id);
CREATE INDEX IF NOT EXISTS idx_section_playbooks_section ON report_section_playbooks(section_id);
CREATE INDEX IF NOT EXISTS idx_playbook_sections_root ON playbook_sections(section_playbook_id);
CREATE INDEX IF NOT EXISTS idx_playbook_sections_parent ON playbook_sections(parent_id);
CREATE INDEX IF NOT EXISTS idx_procedures_report ON report_procedures(report_id);
CREATE INDEX IF NOT EXISTS idx_vulnerabilities_section ON vulnerabilities(section_id);
CREATE INDEX IF NOT EXISTS idx_versions_report ON report_versions(report_id);
CREATE INDEX IF NOT EXISTS idx_versions_creation ON report_versions(creation_status);
`
