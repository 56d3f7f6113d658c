// Configuration HTTP handlers.
//
// Exposes the role-filtered configuration catalog:
//   - GET /chat/configurations        (list visible configurations)
//   - GET /chat/configurations/{id}   (one visible configuration)
//
// The list a caller sees depends on their roles; configurations outside
// their grants are absent from lists and return 404 on direct lookup.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/services"
)

// ConfigurationView is the public shape of a configuration.
type ConfigurationView struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Environment string `json:"environment"`
	DomainKey   string `json:"domain_key"`
	DomainName  string `json:"domain_name"`
}

// ListConfigurationsResponse wraps the visible configuration list.
type ListConfigurationsResponse struct {
	Configurations []ConfigurationView `json:"configurations"`
}

func configurationView(cfg domain.Configuration) ConfigurationView {
	return ConfigurationView{
		ID:          cfg.ID,
		Key:         cfg.Key,
		DisplayName: cfg.DisplayName,
		Environment: cfg.Environment,
		DomainKey:   cfg.Domain.Key,
		DomainName:  cfg.Domain.DisplayName,
	}
}

// ListConfigurations godoc
// @ID          listConfigurations
// @Summary     List knowledge configurations
// @Description Returns the active configurations the caller's roles grant, ordered by domain then key. Callers without any grants receive an empty list.
// @Tags        Configurations
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       environment    query   string  false "Filter by environment"  Enums(staging, production)
//
// @Success     200  {object} handlers.ListConfigurationsResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/configurations [get]
func (h *Handlers) ListConfigurations(c *gin.Context) {
	environment := c.Query("environment")
	if environment != "" && environment != domain.EnvStaging && environment != domain.EnvProduction {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
			"environment must be staging or production")
		return
	}

	cfgs, err := h.cfgSvc.List(c.Request.Context(), environment)
	if err != nil {
		failInternal(c, ErrCodeListFailed, err)
		return
	}

	views := make([]ConfigurationView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, configurationView(cfg))
	}
	ok(c, http.StatusOK, ListConfigurationsResponse{Configurations: views})
}

// GetConfiguration godoc
// @ID          getConfiguration
// @Summary     Get a knowledge configuration
// @Description Returns one active configuration if the caller's roles grant it. Ungranted configurations are indistinguishable from absent ones.
// @Tags        Configurations
// @Produce     json
//
// @Param       Authorization  header  string  true "Bearer token"
// @Param       id             path    string  true "Configuration ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.ConfigurationView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Configuration not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/configurations/{id} [get]
func (h *Handlers) GetConfiguration(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "configuration id must be a UUID")
		return
	}

	cfg, err := h.cfgSvc.Resolve(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrConfigurationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "configuration not found")
		} else {
			failInternal(c, ErrCodeInternal, err)
		}
		return
	}
	ok(c, http.StatusOK, configurationView(*cfg))
}
