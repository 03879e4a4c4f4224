package infostore

import (
	"context"
	"fmt"

	"infostore/internal/domain/repositories"
	"infostore/internal/repository/postgres"
)

// Column sizes here must agree with config.FieldByteLimits.
const headColumns = `
	cid           BIGINT   NOT NULL,
	id            BIGINT   NOT NULL,
	folder_id     BIGINT   NOT NULL,
	version       INTEGER  NOT NULL,
	color_label   SMALLINT NOT NULL DEFAULT 0,
	creating_date BIGINT   NOT NULL,
	last_modified BIGINT   NOT NULL,
	created_by    BIGINT   NOT NULL,
	changed_by    BIGINT   NOT NULL,
	PRIMARY KEY (cid, id)`

const versionColumns = `
	cid                  BIGINT        NOT NULL,
	infostore_id         BIGINT        NOT NULL,
	version_number       INTEGER       NOT NULL,
	creating_date        BIGINT        NOT NULL,
	last_modified        BIGINT        NOT NULL,
	created_by           BIGINT        NOT NULL,
	changed_by           BIGINT        NOT NULL,
	title                VARCHAR(128),
	url                  VARCHAR(256),
	description          TEXT,
	categories           VARCHAR(255),
	filename             VARCHAR(255),
	file_size            BIGINT,
	file_mimetype        VARCHAR(255),
	file_md5sum          VARCHAR(32),
	file_version_comment TEXT,
	file_store_location  VARCHAR(255),
	PRIMARY KEY (cid, infostore_id, version_number)`

// schemaStatements returns the DDL for all engine tables, in creation order.
func schemaStatements(t *postgres.TableNames) []string {
	return []string{
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s_id_seq`, t.Folders),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	cid           BIGINT       NOT NULL,
	id            BIGINT       NOT NULL,
	parent_id     BIGINT,
	name          VARCHAR(255) NOT NULL,
	module        VARCHAR(32)  NOT NULL,
	created_by    BIGINT       NOT NULL,
	creating_date BIGINT       NOT NULL,
	last_modified BIGINT       NOT NULL,
	PRIMARY KEY (cid, id)
)`, t.Folders),
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s_id_seq`, t.Documents),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, t.Documents, headColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
	FOREIGN KEY (cid, infostore_id) REFERENCES %s (cid, id)
)`, t.DocumentVersions, versionColumns, t.Documents),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_folder_idx ON %s (cid, folder_id)`, t.Documents, t.Documents),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_filename_idx ON %s (cid, filename)`, t.DocumentVersions, t.DocumentVersions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, t.DelDocuments, headColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, t.DelDocumentVersions, versionColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         UUID         PRIMARY KEY,
	cid        BIGINT       NOT NULL,
	folder_id  BIGINT       NOT NULL,
	filename   VARCHAR(255) NOT NULL,
	created_at BIGINT       NOT NULL,
	UNIQUE (cid, folder_id, filename)
)`, t.Reservations),
	}
}

// Migrate creates the engine tables if they do not exist.
func Migrate(ctx context.Context, db repositories.DBTX, tables *postgres.TableNames) error {
	for _, stmt := range schemaStatements(tables) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DropAll removes every engine table. Used by tests and the db reset command.
func DropAll(ctx context.Context, db repositories.DBTX, tables *postgres.TableNames) error {
	for _, table := range []string{
		tables.Reservations,
		tables.DelDocumentVersions,
		tables.DelDocuments,
		tables.DocumentVersions,
		tables.Documents,
		tables.Folders,
	} {
		if _, err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	for _, table := range []string{tables.Documents, tables.Folders} {
		if _, err := db.Exec(ctx, fmt.Sprintf("DROP SEQUENCE IF EXISTS %s_id_seq", table)); err != nil {
			return fmt.Errorf("drop sequence: %w", err)
		}
	}
	return nil
}
