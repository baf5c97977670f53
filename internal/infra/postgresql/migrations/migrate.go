package migrations

import (
	"github.com/bkaraoglu/finishline/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createBatchesTable(),
		createTasksTable(),
		createOutboxTable(),
		createTaskExecutionsTable(),
	})

	return m.Migrate()
}

func createBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batches",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.BatchModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}

func createTasksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_tasks",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TaskModel{}); err != nil {
				return err
			}
			indexes := []string{
				// The completion check only ever asks "does an incomplete task
				// exist for this batch"; the partial index keeps that cheap.
				`CREATE INDEX IF NOT EXISTS idx_tasks_batch_incomplete ON tasks (batch_id) WHERE completed = false`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_batch_id ON tasks (batch_id, id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TaskModel{})
		},
	}
}

func createOutboxTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_outbox_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.OutboxMessageModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_undispatched ON outbox_messages (created_at) WHERE dispatched_at IS NULL`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.OutboxMessageModel{})
		},
	}
}

func createTaskExecutionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_task_executions",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TaskExecutionModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_task_executions_batch_id ON task_executions (batch_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TaskExecutionModel{})
		},
	}
}
