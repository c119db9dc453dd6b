package controllers

import (
	"github.com/bellapacxx/bingo75-backend/claims"
	"github.com/bellapacxx/bingo75-backend/store"

	"go.uber.org/zap"
)

// API bundles the handlers' dependencies; handlers are methods rather
// than package functions so nothing reaches for globals.
type API struct {
	store  *store.Store
	claims *claims.Coordinator
	log    *zap.SugaredLogger
}

func New(st *store.Store, cp *claims.Coordinator, log *zap.SugaredLogger) *API {
	return &API{store: st, claims: cp, log: log}
}
