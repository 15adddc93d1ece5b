package entity

// DefaultMaterials 内置物料参考列表，仅用于录入联想，不参与校验
var DefaultMaterials = []string{
	"CEMENT",
	"GYPSUM",
	"TILES",
	"SAND",
	"STEEL",
	"BRICKS",
	"AGGREGATE",
	"FLY ASH",
	"LIME",
}
