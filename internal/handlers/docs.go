package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

// jsonResponse describes a 200 response with the given schema
func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

// errorResponse describes an ErrorResponse body
func errorResponse(description string) object {
	return jsonResponse(description, object{"$ref": "#/components/schemas/ErrorResponse"})
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func arrayOf(schema object) object {
	return object{"type": "array", "items": schema}
}

func getOperation(summary, description string, responses object, params ...object) object {
	op := object{
		"summary":     summary,
		"description": description,
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return object{"get": op}
}

var snapshotIDParam = object{
	"name":        "id",
	"in":          "path",
	"description": "Snapshot UUID",
	"required":    true,
	"schema":      object{"type": "string", "format": "uuid"},
}

var htmlResponse = object{
	"description": "Interactive 3D scatter page",
	"content": object{
		"text/html": object{"schema": object{"type": "string"}},
	},
}

// openAPIDocument builds the OpenAPI 3.0 document for the map API
func openAPIDocument() object {
	integer := object{"type": "integer"}
	number := object{"type": "number"}
	str := object{"type": "string"}

	position := object{
		"type":       "object",
		"properties": object{"x": integer, "y": integer, "z": integer},
	}
	survivor := object{
		"type": "object",
		"properties": object{
			"position":      ref("Position"),
			"priority":      integer,
			"heat":          number,
			"co2":           number,
			"confidence":    integer,
			"location_type": str,
		},
	}
	floor := object{
		"type": "object",
		"properties": object{
			"floor":          integer,
			"survivor_count": integer,
			"obstacle_count": integer,
			"density":        number,
			"density_class":  object{"type": "string", "enum": []string{"low", "medium", "high"}},
		},
	}
	snapshot := object{
		"type": "object",
		"properties": object{
			"id":                 object{"type": "string", "format": "uuid"},
			"source_path":        str,
			"width":              integer,
			"height":             integer,
			"depth":              integer,
			"expected_survivors": integer,
			"survivor_count":     integer,
			"obstacle_count":     integer,
			"skipped_lines":      integer,
			"created_at":         object{"type": "string", "format": "date-time"},
		},
	}

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Rescue Map API",
			"description": "Aggregated views over a parsed collapsed-building rescue map",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/map": getOperation("Map summary",
				"Dimensions, cell counts and line statistics of the loaded map",
				object{"200": jsonResponse("Map summary", ref("MapSummary"))}),
			"/api/map/floors": getOperation("Per-floor counts",
				"Survivor and debris counts with density for every floor in [0, depth)",
				object{"200": jsonResponse("Floor records", arrayOf(ref("FloorRecord")))}),
			"/api/map/temperature": getOperation("Temperature buckets",
				"Survivors grouped by heat band (low < 36.0 <= normal < 37.5 <= high)",
				object{"200": jsonResponse("Buckets", object{
					"type": "object",
					"properties": object{
						"low":    arrayOf(ref("Survivor")),
						"normal": arrayOf(ref("Survivor")),
						"high":   arrayOf(ref("Survivor")),
					},
				})}),
			"/api/map/statistics": getOperation("Survivor statistics",
				"Mean, min and max heat with mean CO2 across survivors",
				object{
					"200": jsonResponse("Statistics", object{
						"type": "object",
						"properties": object{
							"count":     integer,
							"mean_heat": number,
							"min_heat":  number,
							"max_heat":  number,
							"mean_co2":  number,
						},
					}),
					"422": errorResponse("The map has no survivors (error EmptyInput)"),
				}),
			"/api/map/report": getOperation("Aggregate report",
				"Every aggregate view in one response; failing views are listed in view_errors",
				object{"200": jsonResponse("Report", object{"type": "object"})}),
			"/api/map/render/3d": getOperation("3D building view",
				"Interactive HTML scatter of debris and survivors",
				object{"200": htmlResponse, "500": errorResponse("Render failed")}),
			"/api/snapshots": getOperation("List snapshots",
				"Persisted map snapshots, newest first. Only present when a database is configured.",
				object{"200": jsonResponse("Snapshot page", object{
					"type": "object",
					"properties": object{
						"data":  arrayOf(ref("Snapshot")),
						"page":  integer,
						"limit": integer,
						"count": integer,
					},
				})},
				object{"name": "page", "in": "query", "required": false, "schema": object{"type": "integer", "default": 1}},
				object{"name": "limit", "in": "query", "required": false, "schema": object{"type": "integer", "default": defaultLimit, "maximum": maxLimit}},
			),
			"/api/snapshots/{id}": getOperation("Get snapshot",
				"Summary of one persisted snapshot",
				object{
					"200": jsonResponse("Snapshot", ref("Snapshot")),
					"400": errorResponse("Invalid id"),
					"404": errorResponse("Unknown snapshot"),
				},
				snapshotIDParam),
			"/api/snapshots/{id}/floors": getOperation("Snapshot floors",
				"Stored per-floor records of one snapshot",
				object{
					"200": jsonResponse("Floor records", arrayOf(ref("FloorRecord"))),
					"404": errorResponse("Unknown snapshot"),
				},
				snapshotIDParam),
			"/api/snapshots/{id}/render/3d": getOperation("Snapshot 3D view",
				"Interactive HTML scatter rebuilt from a stored snapshot",
				object{"200": htmlResponse, "404": errorResponse("Unknown snapshot")},
				snapshotIDParam),
			"/health": getOperation("Health check",
				"Reports the loaded map and, when configured, database reachability",
				object{
					"200": jsonResponse("Healthy", object{"type": "object"}),
					"503": jsonResponse("Database unreachable", object{"type": "object"}),
				}),
			"/metrics": getOperation("Prometheus metrics",
				"Prometheus metrics endpoint for monitoring",
				object{"200": object{
					"description": "Prometheus metrics in text format",
					"content": object{
						"text/plain": object{"schema": str},
					},
				}}),
		},
		"components": object{
			"schemas": object{
				"Position":    position,
				"Survivor":    survivor,
				"FloorRecord": floor,
				"Snapshot":    snapshot,
				"MapSummary": object{
					"type": "object",
					"properties": object{
						"source_path":          str,
						"dimensions":           object{"type": "object"},
						"expected_survivors":   integer,
						"survivor_count":       integer,
						"obstacle_count":       integer,
						"survivor_discrepancy": integer,
						"lines":                object{"type": "object"},
					},
				},
				"ErrorResponse": object{
					"type": "object",
					"properties": object{
						"error":   str,
						"message": str,
						"code":    integer,
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI 3.0 document for the map API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
