package web

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes wires the API surface onto a fiber app.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)
	w.Get("/:id/progress", handlers.GetProgress)
	w.Get("/:id/gates/:type", handlers.CheckGate)
	w.Post("/:id/approvals/:type", handlers.ProcessWorkflowApproval)
	w.Post("/:id/clusters/validate", handlers.ValidateClusters)

	k := app.Group("/keywords")
	k.Post("/:id/subtopics/approval", handlers.ProcessKeywordApproval)
}
