package http

import "github.com/gin-gonic/gin"

// Register mounts every handler on r. Definition identities contain '/', so
// clients escape it (%2F) and the engine must run with UseRawPath.
func Register(r gin.IRouter, h *Handlers) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/priority", h.Priority)

	components := r.Group("/components")
	{
		components.GET("", h.ListComponents)
		components.POST("", h.Launch)
		components.POST("/stack", h.LaunchStack)
		components.GET("/:id", h.GetComponent)
		components.POST("/:id/finish", h.Finish)
		components.POST("/:id/finish-affinity", h.FinishAffinity)
		components.PUT("/:id/result", h.SetResult)
		components.POST("/:id/result", h.DeliverResult)
		components.POST("/:id/intent", h.DeliverNewIntent)
		components.POST("/:id/start-postponed", h.StartPostponed)
		components.POST("/:id/recreate", h.Recreate)
		components.POST("/:id/reclaim", h.Reclaim)
		components.POST("/:id/logs", h.ComponentLogs)
	}

	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.POST("/:id/back", h.MoveTaskToBack)
		tasks.POST("/:id/front", h.MoveTaskToFront)
		tasks.POST("/:id/navigate-up", h.NavigateUp)
	}

	host := r.Group("/host")
	{
		host.POST("/configuration", h.ConfigurationChanged)
		host.POST("/trim", h.TrimMemory)
		host.GET("/services", h.ListServices)
		host.POST("/services", h.StartService)
		host.DELETE("/services/:name", h.StopService)
	}

	defs := r.Group("/definitions")
	{
		defs.GET("", h.ListDefinitions)
		defs.POST("", h.RegisterDefinition)
		defs.GET("/:identity", h.GetDefinition)
		defs.DELETE("/:identity", h.DeleteDefinition)
	}

	r.GET("/logs/level", h.GetLogLevel)
	r.PUT("/logs/level", h.SetLogLevel)
}
