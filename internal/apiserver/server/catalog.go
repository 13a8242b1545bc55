package server

import (
	"net/http"
	"strconv"

	"campus-access/internal/shared/model"
)

// ListBuildings 楼栋列表
//
// 路由: GET /api/v1/catalog/buildings
func (h *Handler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"buildings": model.Buildings()})
}

// ListRooms 楼栋内房间
//
// 路由: GET /api/v1/catalog/buildings/{id}/rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid building id")
		return
	}
	if _, ok := model.BuildingByID(id); !ok {
		writeError(w, http.StatusNotFound, "building not found")
		return
	}
	rooms := model.RoomsIn(id)
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}
