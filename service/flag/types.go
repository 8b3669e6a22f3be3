package flag

import "github.com/elC0mpa/ec2-concierge/model"

type service struct{}

type FlagService interface {
	GetParsedFlags() (model.Flags, error)
}
