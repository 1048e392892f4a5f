package ncr

import (
	"github.com/go-chi/chi/v5"

	"github.com/juggajay/site-proof-sub003/pkg/audit"
)

// NewRouter creates a chi router with the NCR API routes. Creation and
// listing hang off the project; everything else addresses the NCR directly.
func NewRouter(engine *Engine, auditStore *audit.Store) chi.Router {
	r := chi.NewRouter()

	r.Route("/projects/{projectID}/ncrs", func(r chi.Router) {
		r.Post("/", createNCRHandler(engine))
		r.Get("/", listNCRsHandler(engine))
	})

	r.Route("/ncrs/{ncrID}", func(r chi.Router) {
		r.Get("/", getNCRHandler(engine))
		r.Get("/history", getHistoryHandler(engine, auditStore))

		r.Post("/respond", respondHandler(engine))
		r.Post("/review", reviewHandler(engine))
		r.Post("/rectify", rectifyHandler(engine))
		r.Post("/submit-verification", submitVerificationHandler(engine))
		r.Post("/reject-rectification", rejectRectificationHandler(engine))
		r.Post("/qm-approve", qmApproveHandler(engine))
		r.Post("/close", closeHandler(engine))
		r.Post("/notify-client", notifyClientHandler(engine))
		r.Post("/reopen", reopenHandler(engine))
		r.Post("/reassign", reassignHandler(engine))

		r.Route("/evidence", func(r chi.Router) {
			r.Get("/", listEvidenceHandler(engine))
			r.Post("/", addEvidenceHandler(engine))
			r.Delete("/{evidenceID}", deleteEvidenceHandler(engine))
		})
	})

	return r
}
