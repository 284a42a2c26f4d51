package api

import "github.com/gin-gonic/gin"

// RegisterDataRoutes mounts the Data service's routes on r.
// GET /health is mounted separately by internal/health.RegisterHTTPRoutes.
func RegisterDataRoutes(r *gin.Engine, h *DataHandler) {
	r.POST("/auth/google", h.AuthGoogle)

	r.GET("/tests", h.ListTests)
	r.POST("/tests", h.CreateTest)
	r.GET("/tests/:id", h.GetTest)
	r.PUT("/tests/:id", h.RenameTest)
	r.DELETE("/tests/:id", h.DeleteTest)

	r.GET("/ldpc/jobs", h.ListLDPCJobs)
	r.POST("/ldpc/jobs", h.CreateLDPCJob)
	r.GET("/ldpc/jobs/:id", h.GetLDPCJob)
	r.PUT("/ldpc/jobs/:id", h.RenameLDPCJob)
	r.DELETE("/ldpc/jobs/:id", h.DeleteLDPCJob)
	r.GET("/ldpc/test-summaries", h.LDPCTestSummaries)

	r.GET("/sat/tests", h.ListSATTests)
	r.GET("/sat/tests/:id", h.GetSATTest)
	r.GET("/sat/test-summaries", h.SATTestSummaries)
	r.POST("/sat/solve", h.SATSolveSubmit)

	r.GET("/system/metrics", h.SystemMetricsList)
	r.POST("/system/metrics", h.SystemMetricsRecord)

	r.GET("/announcements", h.ListAnnouncements)
	r.POST("/announcements", h.CreateAnnouncement)
	r.DELETE("/announcements/:id", h.DeleteAnnouncement)
}
