package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cppla/threadline/models"
)

func dryRunRepo(t *testing.T, dialector gorm.Dialector) *GormRepository {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return NewGormRepository(db)
}

func TestLockQueriesPerDialect(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name      string
		dialector func(t *testing.T) gorm.Dialector
		forUpdate bool
	}{
		{
			name: "mysql",
			dialector: func(*testing.T) gorm.Dialector {
				return mysql.New(mysql.Config{DSN: "u:p@tcp(127.0.0.1:3306)/threadline?parseTime=true", SkipInitializeWithVersion: true})
			},
			forUpdate: true,
		},
		{
			name: "postgres",
			dialector: func(*testing.T) gorm.Dialector {
				return postgres.Open("host=127.0.0.1 user=u dbname=threadline sslmode=disable")
			},
			forUpdate: true,
		},
		{
			name: "sqlite",
			dialector: func(t *testing.T) gorm.Dialector {
				return sqlite.Open(filepath.Join(t.TempDir(), "dry.db"))
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := dryRunRepo(t, tc.dialector(t))

			postSQL := repo.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				return repo.forUpdate(tx).First(&models.Post{}, 1)
			})
			threadSQL := repo.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				return repo.forUpdate(tx).First(&models.Thread{}, 1)
			})

			require.Contains(t, postSQL, "posts")
			require.Contains(t, threadSQL, "threads")
			if tc.forUpdate {
				require.Contains(t, postSQL, "FOR UPDATE")
				require.Contains(t, threadSQL, "FOR UPDATE")
			} else {
				require.NotContains(t, postSQL, "FOR UPDATE")
				require.NotContains(t, threadSQL, "FOR UPDATE")
			}
		})
	}
}
