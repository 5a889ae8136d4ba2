/*
Copyright 2024 Pitchroom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/pitchroom/dealflow/api/model"
	"github.com/pitchroom/dealflow/internal/apierror"
)

func (a Api) ExpressInterest(c *gin.Context) {
	var newInterest model2.ExpressInterest
	if err := c.ShouldBindJSON(&newInterest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newInterest.ValidateExpressInterest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.dealflow.ExpressInterest(c.Request.Context(), newInterest.ToDeal())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetDeal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.dealflow.GetDeal(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) SendDealEvent(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var newEvent model2.SendDealEvent
	if err := c.ShouldBindJSON(&newEvent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newEvent.ValidateSendDealEvent()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.dealflow.HandleEvent(c.Request.Context(), id, newEvent.ToDealEvent())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetDealsByPitch(c *gin.Context) {
	pitchID, passed := c.Params.Get("pitch_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pitch_id is required. pass id in the route /:pitch_id"})
		return
	}

	resp, err := a.dealflow.GetDealsByPitch(c.Request.Context(), pitchID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetExclusivityStatus(c *gin.Context) {
	pitchID, passed := c.Params.Get("pitch_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pitch_id is required. pass id in the route /:pitch_id"})
		return
	}

	resp, err := a.dealflow.GetExclusivityStatus(c.Request.Context(), pitchID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
