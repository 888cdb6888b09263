package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/paymentevents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/payments"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Payments(db dbx.DBTX) payments.Repository
	PaymentEvents(db dbx.DBTX) paymentevents.Repository
	Documents(db dbx.DBTX) documents.Repository
}
