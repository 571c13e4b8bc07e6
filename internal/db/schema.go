package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- REPORT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS report SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS dataset_id ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS conversation_id ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS question ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS analysis_type ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS period ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS summary ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS tables ON report TYPE array<object> FLEXIBLE;
    -- Note: Must REMOVE then DEFINE to ensure FLEXIBLE is set (IF NOT EXISTS won't update existing field)
    REMOVE FIELD IF EXISTS tables.* ON report;
    DEFINE FIELD tables.* ON report TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS audit ON report TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS mode_flags ON report TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON report TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS report_dataset ON report FIELDS dataset_id;
    DEFINE INDEX IF NOT EXISTS report_conversation ON report FIELDS conversation_id;
    DEFINE INDEX IF NOT EXISTS report_created ON report FIELDS created;
`
