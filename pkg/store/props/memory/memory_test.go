package memory

import (
	"testing"

	"github.com/marmos91/dittodav/pkg/store/props"
	propstesting "github.com/marmos91/dittodav/pkg/store/props/testing"
)

func TestMemoryPropertyStore(t *testing.T) {
	suite := &propstesting.StoreTestSuite{
		NewStore: func(t *testing.T) props.Store {
			return NewMemoryPropertyStore()
		},
	}
	suite.Run(t)
}

func TestPrefixedMemoryPropertyStore(t *testing.T) {
	suite := &propstesting.StoreTestSuite{
		NewStore: func(t *testing.T) props.Store {
			return props.NewPrefixed(NewMemoryPropertyStore(), "share")
		},
	}
	suite.Run(t)
}
