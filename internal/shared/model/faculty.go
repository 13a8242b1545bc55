package model

import (
	"fmt"
	"strings"
)

// 教职工编号：分类(3位) + 楼栋(2位) + 办公室号(3位)
// 例：管理 Martin 楼 215 办公室的楼宇经理为 50022215

var facultyClassification = map[Role]string{
	RoleApprover:   "500",
	RoleAdmin:      "300",
	RoleResearcher: "200",
	RoleProfessor:  "100",
}

// DeanClassification 院长分类码（无对应角色）
const DeanClassification = "400"

var facultyBuildingCode = map[string]string{
	"martin": "22",
	"monroe": "21",
	"mcnair": "87",
	"graham": "39",
}

// FacultyID 生成教职工编号
func FacultyID(role Role, building, office string) (string, error) {
	class, ok := facultyClassification[role]
	if !ok {
		return "", NewValidationError("role", fmt.Sprintf("role %s has no faculty classification", role))
	}
	code, ok := facultyBuildingCode[strings.ToLower(strings.TrimSpace(building))]
	if !ok {
		return "", NewValidationError("building", "unknown building "+building)
	}
	office = strings.TrimSpace(office)
	if len(office) != 3 || strings.Trim(office, "0123456789") != "" {
		return "", NewValidationError("office", "office number must be 3 digits")
	}
	return class + code + office, nil
}
