package utils

import (
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/models"
)

// GetAllCategoryIDs returns rootID and the ids of every category below it,
// breadth first.
func GetAllCategoryIDs(tx *gorm.DB, rootID uint) ([]uint, error) {
	result := []uint{rootID}
	queue := []uint{rootID}
	seen := map[uint]bool{rootID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var children []uint
		if err := tx.Model(&models.Category{}).Where("parent_id = ?", current).Pluck("id", &children).Error; err != nil {
			return nil, err
		}

		for _, child := range children {
			if seen[child] {
				continue
			}
			seen[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}

	return result, nil
}
