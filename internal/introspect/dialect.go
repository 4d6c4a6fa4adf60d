package introspect

import "strings"

// dialect holds the catalog queries of one database engine. Every per-table query takes
// (schema, table) as its two bind parameters; oracle queries that need them twice take four.
type dialect struct {
	name          string
	driver        string // database/sql driver name
	currentSchema string
	tables        string
	columns       string
	primaryKey    string
	indexes       string
	foreignKeys   string
	repeatArgs    bool // bind (schema, table) twice for indexes
}

var postgres = dialect{
	name:          "postgres",
	driver:        "pgx",
	currentSchema: `SELECT current_schema()`,
	tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columns: `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			col_description(format('%I.%I', table_schema, table_name)::regclass, ordinal_position)
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position`,
	primaryKey: `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`,
	indexes: `
		SELECT
			i.relname,
			a.attname,
			ix.indisunique,
			EXISTS (SELECT 1 FROM pg_constraint c WHERE c.conindid = ix.indexrelid AND c.contype = 'u')
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, k.ord`,
	foreignKeys: `
		SELECT
			c.conname,
			a.attname,
			rt.relname,
			ra.attname,
			CASE c.confupdtype WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'r' THEN 'RESTRICT' ELSE 'NO ACTION' END,
			CASE c.confdeltype WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'r' THEN 'RESTRICT' ELSE 'NO ACTION' END
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = c.confrelid
		JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(col, refcol, ord) ON true
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.col
		JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = k.refcol
		WHERE c.contype = 'f'
		  AND n.nspname = $1
		  AND t.relname = $2
		ORDER BY c.conname, k.ord`,
}

var mysql = dialect{
	name:          "mysql",
	driver:        "mysql",
	currentSchema: `SELECT DATABASE()`,
	tables: `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	columns: `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			CHARACTER_MAXIMUM_LENGTH,
			NUMERIC_PRECISION,
			NUMERIC_SCALE,
			COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	primaryKey: `
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE CONSTRAINT_NAME = 'PRIMARY'
		  AND TABLE_SCHEMA = ?
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	indexes: `
		SELECT
			s.INDEX_NAME,
			s.COLUMN_NAME,
			s.NON_UNIQUE = 0,
			EXISTS (
				SELECT 1 FROM information_schema.TABLE_CONSTRAINTS tc
				WHERE tc.TABLE_SCHEMA = s.TABLE_SCHEMA
				  AND tc.TABLE_NAME = s.TABLE_NAME
				  AND tc.CONSTRAINT_NAME = s.INDEX_NAME
				  AND tc.CONSTRAINT_TYPE = 'UNIQUE')
		FROM information_schema.STATISTICS s
		WHERE s.TABLE_SCHEMA = ?
		  AND s.TABLE_NAME = ?
		  AND s.INDEX_NAME <> 'PRIMARY'
		  AND s.INDEX_NAME NOT IN (
				SELECT tc.CONSTRAINT_NAME FROM information_schema.TABLE_CONSTRAINTS tc
				WHERE tc.TABLE_SCHEMA = s.TABLE_SCHEMA
				  AND tc.TABLE_NAME = s.TABLE_NAME
				  AND tc.CONSTRAINT_TYPE = 'FOREIGN KEY')
		ORDER BY s.INDEX_NAME, s.SEQ_IN_INDEX`,
	foreignKeys: `
		SELECT
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME,
			rc.UPDATE_RULE,
			rc.DELETE_RULE
		FROM information_schema.KEY_COLUMN_USAGE kcu
		JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
		  ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
		  AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA = ?
		  AND kcu.TABLE_NAME = ?
		  AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
}

var oracle = dialect{
	name:          "oracle",
	driver:        "oracle",
	currentSchema: `SELECT USER FROM DUAL`,
	tables: `
		SELECT TABLE_NAME
		FROM ALL_TABLES
		WHERE OWNER = :1
		ORDER BY TABLE_NAME`,
	columns: `
		SELECT c.COLUMN_NAME, c.DATA_TYPE,
			CASE WHEN c.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
			c.DATA_DEFAULT, c.CHAR_LENGTH, c.DATA_PRECISION, c.DATA_SCALE,
			cc.COMMENTS
		FROM ALL_TAB_COLUMNS c
		LEFT JOIN ALL_COL_COMMENTS cc
		  ON cc.OWNER = c.OWNER AND cc.TABLE_NAME = c.TABLE_NAME AND cc.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.OWNER = :1
		  AND c.TABLE_NAME = :2
		ORDER BY c.COLUMN_ID`,
	primaryKey: `
		SELECT cc.COLUMN_NAME
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
		WHERE c.OWNER = :1
		  AND c.TABLE_NAME = :2
		  AND c.CONSTRAINT_TYPE = 'P'
		ORDER BY cc.POSITION`,
	indexes: `
		SELECT i.INDEX_NAME, ic.COLUMN_NAME,
			CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN 1 ELSE 0 END,
			CASE WHEN EXISTS (
				SELECT 1 FROM ALL_CONSTRAINTS u
				WHERE u.OWNER = i.TABLE_OWNER AND u.INDEX_NAME = i.INDEX_NAME AND u.CONSTRAINT_TYPE = 'U'
			) THEN 1 ELSE 0 END
		FROM ALL_INDEXES i
		JOIN ALL_IND_COLUMNS ic ON ic.INDEX_OWNER = i.OWNER AND ic.INDEX_NAME = i.INDEX_NAME
		WHERE i.TABLE_OWNER = :1
		  AND i.TABLE_NAME = :2
		  AND i.INDEX_NAME NOT IN (
				SELECT p.INDEX_NAME FROM ALL_CONSTRAINTS p
				WHERE p.OWNER = :3 AND p.TABLE_NAME = :4 AND p.CONSTRAINT_TYPE = 'P' AND p.INDEX_NAME IS NOT NULL)
		ORDER BY i.INDEX_NAME, ic.COLUMN_POSITION`,
	foreignKeys: `
		SELECT c.CONSTRAINT_NAME,
			cc.COLUMN_NAME,
			rc.TABLE_NAME,
			rcc.COLUMN_NAME,
			'NO ACTION',
			c.DELETE_RULE
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
		JOIN ALL_CONSTRAINTS rc ON c.R_CONSTRAINT_NAME = rc.CONSTRAINT_NAME AND c.R_OWNER = rc.OWNER
		JOIN ALL_CONS_COLUMNS rcc ON rc.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME AND rc.OWNER = rcc.OWNER
			AND cc.POSITION = rcc.POSITION
		WHERE c.OWNER = :1
		  AND c.TABLE_NAME = :2
		  AND c.CONSTRAINT_TYPE = 'R'
		ORDER BY c.CONSTRAINT_NAME, cc.POSITION`,
	repeatArgs: true,
}

// lookupDialect resolves a configured driver name.
func lookupDialect(name string) (dialect, bool) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return postgres, true
	case "mysql", "mariadb":
		return mysql, true
	case "oracle":
		return oracle, true
	}
	return dialect{}, false
}
