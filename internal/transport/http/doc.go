// Package http implements the HTTP surface of the sea level service: the
// server rendered page, raw chart images, the JSON API and the websocket
// upgrade.
//
// Handlers stay thin. They parse the request, call the service layer and
// format the response; all analysis lives in internal/services.
//
// # Routes
//
//	GET  /                                   page for dataset, start, end
//	POST /upload                             multipart "file", redirects to the page
//	GET  /chart.{format}                     png or svg chart image
//	GET  /static/*                           embedded css and images
//	GET  /api/v1/sealevel/fit                regression of a dataset
//	GET  /api/v1/sealevel/chart              chart with hotspots, image base64
//	GET  /api/v1/sealevel/observations       observations, optionally ranged
//	GET  /api/v1/sealevel/datasets           cached datasets
//	POST /api/v1/sealevel/datasets           upload a table
//	GET  /api/v1/sealevel/export.{format}    csv or xlsx download
//	GET  /ws                                 websocket range/chart channel
//
// # Error Handling
//
// API errors are RFC 7807 problem details produced by
// internal/errors.ErrorHandler:
//
//	{
//	    "type": "/errors/dataset/not-found",
//	    "title": "Dataset Not Found",
//	    "status": 404,
//	    "detail": "dataset \"abc\" not found",
//	    "instance": "/api/v1/sealevel/fit"
//	}
//
// The page renders the same problem inline instead.
package http
