package model

import "strings"

// Building 楼栋（静态参考数据）
type Building struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Room 房间（静态参考数据）
type Room struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	BuildingID int    `json:"building_id"`
}

var buildings = []Building{
	{ID: 1, Name: "McNair"},
	{ID: 2, Name: "Graham"},
	{ID: 3, Name: "Monroe"},
	{ID: 4, Name: "Martin"},
}

var rooms = []Room{
	{ID: 101, Name: "Room 101", BuildingID: 1},
	{ID: 102, Name: "Lab A", BuildingID: 1},
	{ID: 201, Name: "Room 201", BuildingID: 2},
	{ID: 202, Name: "Studio B", BuildingID: 2},
	{ID: 301, Name: "Room 301", BuildingID: 3},
	{ID: 401, Name: "Lab C", BuildingID: 4},
	{ID: 404, Name: "Server Room", BuildingID: 4},
}

// Buildings 返回全部楼栋
func Buildings() []Building {
	return append([]Building(nil), buildings...)
}

// BuildingNames 返回全部楼栋名称
func BuildingNames() []string {
	names := make([]string, len(buildings))
	for i, b := range buildings {
		names[i] = b.Name
	}
	return names
}

// BuildingByID 按 ID 查找楼栋
func BuildingByID(id int) (Building, bool) {
	for _, b := range buildings {
		if b.ID == id {
			return b, true
		}
	}
	return Building{}, false
}

// BuildingByName 按名称查找楼栋（大小写不敏感）
func BuildingByName(name string) (Building, bool) {
	name = strings.TrimSpace(name)
	for _, b := range buildings {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return Building{}, false
}

// RoomByID 按 ID 查找房间
func RoomByID(id int) (Room, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// RoomsIn 返回楼栋内的房间
func RoomsIn(buildingID int) []Room {
	var out []Room
	for _, r := range rooms {
		if r.BuildingID == buildingID {
			out = append(out, r)
		}
	}
	return out
}
