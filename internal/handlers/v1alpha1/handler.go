package v1alpha1

import (
	"net/http"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/go-chi/render"
)

type ServiceHandler struct {
	jobSrv *service.JobService
	jobs   store.Job
}

func NewServiceHandler(jobService *service.JobService, jobs store.Job) *ServiceHandler {
	return &ServiceHandler{
		jobSrv: jobService,
		jobs:   jobs,
	}
}

func renderJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	renderJSON(w, r, status, api.Error{Message: message})
}
