package metadata

import (
	"github.com/nlstn/go-odata-client/internal/cache"
)

type entry[T any] struct {
	value T
	err   error
}

// Cache memoizes every lookup of the wrapped Metadata, errors included.
// Lookups are pure, so concurrent misses on one key compute the same entry
// and the first publication wins.
type Cache struct {
	metadata Metadata

	collections *cache.Memo[entry[*EntityCollection]]
	names       *cache.Memo[entry[string]]
	lists       *cache.Memo[entry[[]string]]
	flags       *cache.Memo[bool]
}

// NewCache wraps m with per-key memoization.
func NewCache(m Metadata) *Cache {
	return &Cache{
		metadata:    m,
		collections: cache.New[entry[*EntityCollection]](),
		names:       cache.New[entry[string]](),
		lists:       cache.New[entry[[]string]](),
		flags:       cache.New[bool](),
	}
}

// SetObserver reports the hit or miss outcome of every lookup to observer.
func (c *Cache) SetObserver(observer cache.LookupObserver) {
	c.collections.SetObserver(observer)
	c.names.SetObserver(observer)
	c.lists.SetObserver(observer)
	c.flags.SetObserver(observer)
}

// Len returns the number of memoized lookups.
func (c *Cache) Len() int {
	return c.collections.Len() + c.names.Len() + c.lists.Len() + c.flags.Len()
}

func (c *Cache) collection(key string, compute func() (*EntityCollection, error)) (*EntityCollection, error) {
	e := c.collections.GetOrAdd(key, func() entry[*EntityCollection] {
		v, err := compute()
		return entry[*EntityCollection]{v, err}
	})
	return e.value, e.err
}

func (c *Cache) name(key string, compute func() (string, error)) (string, error) {
	e := c.names.GetOrAdd(key, func() entry[string] {
		v, err := compute()
		return entry[string]{v, err}
	})
	return e.value, e.err
}

func (c *Cache) list(key string, compute func() ([]string, error)) ([]string, error) {
	e := c.lists.GetOrAdd(key, func() entry[[]string] {
		v, err := compute()
		return entry[[]string]{v, err}
	})
	return e.value, e.err
}

func (c *Cache) flag(key string, compute func() bool) bool {
	return c.flags.GetOrAdd(key, compute)
}

func (c *Cache) GetEntityCollection(collectionPath string) (*EntityCollection, error) {
	return c.collection("ec:"+collectionPath, func() (*EntityCollection, error) {
		return c.metadata.GetEntityCollection(collectionPath)
	})
}

func (c *Cache) GetDerivedEntityCollection(base *EntityCollection, entityTypeName string) (*EntityCollection, error) {
	// Keyed by a collection value, not memoized.
	return c.metadata.GetDerivedEntityCollection(base, entityTypeName)
}

func (c *Cache) NavigateToCollection(path string) (*EntityCollection, error) {
	return c.collection("nav:"+path, func() (*EntityCollection, error) {
		return c.metadata.NavigateToCollection(path)
	})
}

func (c *Cache) NavigateFrom(root *EntityCollection, path string) (*EntityCollection, error) {
	return c.metadata.NavigateFrom(root, path)
}

func (c *Cache) GetEntityCollectionExactName(collectionName string) (string, error) {
	return c.name("ecen:"+collectionName, func() (string, error) {
		return c.metadata.GetEntityCollectionExactName(collectionName)
	})
}

func (c *Cache) GetDerivedEntityTypeExactName(collectionName, entityTypeName string) (string, error) {
	return c.name("eten:"+collectionName+"/"+entityTypeName, func() (string, error) {
		return c.metadata.GetDerivedEntityTypeExactName(collectionName, entityTypeName)
	})
}

func (c *Cache) GetQualifiedTypeName(typeOrCollectionName string) (string, error) {
	return c.name("qtn:"+typeOrCollectionName, func() (string, error) {
		return c.metadata.GetQualifiedTypeName(typeOrCollectionName)
	})
}

func (c *Cache) IsOpenType(collectionName string) bool {
	return c.flag("ot:"+collectionName, func() bool {
		return c.metadata.IsOpenType(collectionName)
	})
}

func (c *Cache) HasStructuralProperty(collectionName, propertyName string) bool {
	return c.flag("sp:"+collectionName+"/"+propertyName, func() bool {
		return c.metadata.HasStructuralProperty(collectionName, propertyName)
	})
}

func (c *Cache) GetStructuralPropertyExactName(collectionName, propertyName string) (string, error) {
	return c.name("spen:"+collectionName+"/"+propertyName, func() (string, error) {
		return c.metadata.GetStructuralPropertyExactName(collectionName, propertyName)
	})
}

func (c *Cache) GetStructuralPropertyPath(collectionName string, propertyNames ...string) (string, error) {
	key := "spp:" + collectionName
	for _, p := range propertyNames {
		key += "/" + p
	}
	return c.name(key, func() (string, error) {
		return c.metadata.GetStructuralPropertyPath(collectionName, propertyNames...)
	})
}

func (c *Cache) GetDeclaredKeyPropertyNames(collectionName string) ([]string, error) {
	return c.list("dkpn:"+collectionName, func() ([]string, error) {
		return c.metadata.GetDeclaredKeyPropertyNames(collectionName)
	})
}

func (c *Cache) GetNavigationPropertyNames(collectionName string) ([]string, error) {
	return c.list("npn:"+collectionName, func() ([]string, error) {
		return c.metadata.GetNavigationPropertyNames(collectionName)
	})
}

func (c *Cache) HasNavigationProperty(collectionName, propertyName string) bool {
	return c.flag("np:"+collectionName+"/"+propertyName, func() bool {
		return c.metadata.HasNavigationProperty(collectionName, propertyName)
	})
}

func (c *Cache) GetNavigationPropertyExactName(collectionName, propertyName string) (string, error) {
	return c.name("npen:"+collectionName+"/"+propertyName, func() (string, error) {
		return c.metadata.GetNavigationPropertyExactName(collectionName, propertyName)
	})
}

func (c *Cache) GetNavigationPropertyPartnerTypeName(collectionName, propertyName string) (string, error) {
	return c.name("nppt:"+collectionName+"/"+propertyName, func() (string, error) {
		return c.metadata.GetNavigationPropertyPartnerTypeName(collectionName, propertyName)
	})
}

func (c *Cache) IsNavigationPropertyCollection(collectionName, propertyName string) bool {
	return c.flag("npc:"+collectionName+"/"+propertyName, func() bool {
		return c.metadata.IsNavigationPropertyCollection(collectionName, propertyName)
	})
}

func (c *Cache) GetFunctionFullName(functionName string) (string, error) {
	return c.name("ffn:"+functionName, func() (string, error) {
		return c.metadata.GetFunctionFullName(functionName)
	})
}

func (c *Cache) GetFunctionReturnCollection(functionName string) (*EntityCollection, error) {
	return c.collection("frc:"+functionName, func() (*EntityCollection, error) {
		return c.metadata.GetFunctionReturnCollection(functionName)
	})
}

func (c *Cache) GetActionFullName(actionName string) (string, error) {
	return c.name("afn:"+actionName, func() (string, error) {
		return c.metadata.GetActionFullName(actionName)
	})
}

func (c *Cache) GetActionReturnCollection(actionName string) (*EntityCollection, error) {
	return c.collection("arc:"+actionName, func() (*EntityCollection, error) {
		return c.metadata.GetActionReturnCollection(actionName)
	})
}
