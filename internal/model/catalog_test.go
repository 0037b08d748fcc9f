package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Offset: 0, Limit: 100}, Page{}.Normalize(100, 500))
	assert.Equal(t, Page{Offset: 20, Limit: 10}, Page{Offset: 20, Limit: 10}.Normalize(100, 500))
	assert.Equal(t, Page{Offset: 0, Limit: 500}, Page{Offset: -5, Limit: 10000}.Normalize(100, 500))
}

func TestAuthor_Age(t *testing.T) {
	a := &Author{}
	_, ok := a.Age(date(2024, 1, 1))
	assert.False(t, ok)

	birth := date(1929, 10, 21)
	a.BirthDate = &birth
	age, ok := a.Age(date(2018, 1, 22))
	assert.True(t, ok)
	assert.Equal(t, 88, age)
}

func TestCategoryPatch_Apply(t *testing.T) {
	c := &Category{Name: "SF", Description: "old"}
	desc := "Science fiction"
	CategoryPatch{Description: &desc}.Apply(c)
	assert.Equal(t, "SF", c.Name)
	assert.Equal(t, "Science fiction", c.Description)
}
