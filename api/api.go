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
	"github.com/gin-gonic/gin"

	"github.com/pitchroom/dealflow"
	"github.com/pitchroom/dealflow/api/middleware"
	"github.com/pitchroom/dealflow/config"
)

type Api struct {
	dealflow *dealflow.Dealflow
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/deals", a.ExpressInterest)
	router.GET("/deals/:id", a.GetDeal)
	router.POST("/deals/:id/events", a.SendDealEvent)

	router.GET("/pitches/:pitch_id/deals", a.GetDealsByPitch)
	router.GET("/pitches/:pitch_id/exclusivity", a.GetExclusivityStatus)

	return a.router
}

func NewAPI(d *dealflow.Dealflow) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{dealflow: d, router: r}
}
