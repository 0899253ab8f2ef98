package user_test

import (
	"context"
	"database/sql"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	authPostgres "github.com/frahmantamala/redteam-collab/internal/auth/postgres"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	userPostgres "github.com/frahmantamala/redteam-collab/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// openPureGoDB opens the database the way the sqlite server mode does, on
// the modernc driver.
func openPureGoDB() *gorm.DB {
	conn, err := sql.Open("sqlite", ":memory:")
	Expect(err).NotTo(HaveOccurred())
	conn.SetMaxOpenConns(1)
	DeferCleanup(conn.Close)

	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", Conn: conn}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(db.AutoMigrate(datamodel.Models()...)).To(Succeed())
	return db
}

var _ = Describe("Username uniqueness on the pure Go sqlite driver", func() {
	var (
		ctx context.Context
		db  *gorm.DB
	)

	newRow := func(id string) *userdm.User {
		name := "racer"
		return &userdm.User{ID: id, Username: &name, Role: "analyst", Status: "pending", AuthSource: "local"}
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = openPureGoDB()
	})

	It("reports a duplicate from the user repository as username taken", func() {
		repo := userPostgres.NewUserRepository(db)
		Expect(repo.Create(ctx, newRow("u-1"))).To(Succeed())

		err := repo.Create(ctx, newRow("u-2"))
		Expect(err).To(MatchError(internal.ErrUsernameTaken))
	})

	It("reports a duplicate from the auth repository as username taken", func() {
		var repo auth.Repository = authPostgres.NewRepository(db)
		Expect(repo.Create(ctx, newRow("u-1"))).To(Succeed())

		err := repo.Create(ctx, newRow("u-2"))
		Expect(err).To(MatchError(internal.ErrUsernameTaken))
	})
})
