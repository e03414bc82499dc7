package sqliteutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct is the database block of a config file. A url switches the
// connection to a remote libsql server, otherwise file is opened as a
// local sqlite database.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Struct) OpenDB(schema string) (*sql.DB, error) {
	if c.Url != "" {
		values := url.Values{}
		if c.AuthToken != "" {
			values.Add("authToken", c.AuthToken)
		}
		db, err := sql.Open("libsql", c.Url+"?"+values.Encode())
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		err = applySchema(db, schema)
		if err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	if c.File == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}
	return OpenDB(schema, c.File)
}

// OpenDB opens (creating if necessary) a sqlite database at path and
// applies the given schema. Passing ":memory:" gives an in-memory
// database.
func OpenDB(schema, path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	err = applySchema(db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applySchema(db *sql.DB, schema string) error {
	if schema == "" {
		return nil
	}
	_, err := db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return wrapOpenDB(err)
	}
	return nil
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}
