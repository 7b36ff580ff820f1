// tasks.go implements the task CRUD endpoints. Isolation and role checks are done by
// TaskService; the route requirements registered in router.go only gate coarse access.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/task-manager/task-manager/internal/middleware"
	"github.com/task-manager/task-manager/internal/services"
)

// TaskHandlers handles /tasks endpoints
type TaskHandlers struct {
	tasks *services.TaskService
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(taskService *services.TaskService) *TaskHandlers {
	return &TaskHandlers{tasks: taskService}
}

// @Summary      Create task
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.CreateTaskInput  true  "Task"
// @Success      201  {object}  models.Task
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/v1/tasks [post]
// CreateTaskHandler creates a task in the caller's organization
// POST /api/v1/tasks
func (h *TaskHandlers) CreateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateTaskInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		task, err := h.tasks.Create(c.Request.Context(), input, middleware.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, task)
	}
}

// @Summary      List tasks
// @Description  Tasks of the caller's organization, newest first.
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tasks: []models.Task"
// @Router       /api/v1/tasks [get]
// ListTasksHandler lists the caller's organization tasks
// GET /api/v1/tasks
func (h *TaskHandlers) ListTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := h.tasks.FindAll(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	}
}

// @Summary      Get task
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Task ID"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [get]
// GetTaskHandler retrieves a task by ID
// GET /api/v1/tasks/:id
func (h *TaskHandlers) GetTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := h.tasks.FindOne(c.Request.Context(), c.Param("id"), middleware.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, task)
	}
}

// @Summary      Update task
// @Description  Partial update; omitted fields keep their value.
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Task ID"
// @Param        body  body  services.TaskPatch  true  "Fields to change"
// @Success      200  {object}  models.Task
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [put]
// UpdateTaskHandler applies a partial update to a task
// PUT /api/v1/tasks/:id
func (h *TaskHandlers) UpdateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.TaskPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err)
			return
		}

		task, err := h.tasks.Update(c.Request.Context(), c.Param("id"), patch, middleware.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, task)
	}
}

// @Summary      Delete task
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Task ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [delete]
// DeleteTaskHandler deletes a task
// DELETE /api/v1/tasks/:id
func (h *TaskHandlers) DeleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.tasks.Remove(c.Request.Context(), c.Param("id"), middleware.GetPrincipal(c)); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
	}
}
