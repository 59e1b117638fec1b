package services

import "corium/internal/ids"

// BaseService carries the identity and properties every Service needs and
// is meant to be embedded by concrete service types, which then only need
// to implement Start and Stop.
type BaseService struct {
	id    ids.ServiceID
	props Properties
}

// NewBaseService returns a BaseService with the given identity and
// properties, ready to embed.
func NewBaseService(id ids.ServiceID, props Properties) BaseService {
	if props == nil {
		props = Properties{}
	}
	return BaseService{id: id, props: props}
}

func (b BaseService) ID() ids.ServiceID    { return b.id }
func (b BaseService) Properties() Properties { return b.props }
