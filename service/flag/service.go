package flag

import (
	"flag"

	"github.com/elC0mpa/ec2-concierge/model"
)

func NewService() *service {
	return &service{}
}

func (s *service) GetParsedFlags() (model.Flags, error) {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listenAddr := flag.String("listen", ":3000", "address for the command intake endpoint")
	region := flag.String("region", "", "AWS region override")

	flag.Parse()

	return model.Flags{
		ConfigPath: *configPath,
		ListenAddr: *listenAddr,
		Region:     *region,
	}, nil
}
