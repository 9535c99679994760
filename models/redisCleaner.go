package models

import (
	"bitbucket.org/mmdatafocus/resto_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list if exists
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Currency) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Currency](obj.ID)
}

func (obj Currency) RemoveAllRedis() error {
	return utils.RemoveRedisList[Currency](obj.BusinessId)
}

func (obj Product) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Product](obj.ID)
}

func (obj Product) RemoveAllRedis() error {
	return utils.RemoveRedisList[Product](obj.BusinessId)
}

func (obj ProductCategory) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[ProductCategory](obj.ID)
}

func (obj ProductCategory) RemoveAllRedis() error {
	return utils.RemoveRedisList[ProductCategory](obj.BusinessId)
}

func (obj ProductUnit) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[ProductUnit](obj.ID)
}

func (obj ProductUnit) RemoveAllRedis() error {
	return utils.RemoveRedisList[ProductUnit](obj.BusinessId)
}

func (obj DiningTable) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[DiningTable](obj.ID)
}

func (obj DiningTable) RemoveAllRedis() error {
	return utils.RemoveRedisList[DiningTable](obj.BusinessId)
}

func (obj Supplier) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Supplier](obj.ID)
}

func (obj Supplier) RemoveAllRedis() error {
	return nil
}

func (obj Customer) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Customer](obj.ID)
}

func (obj Customer) RemoveAllRedis() error {
	return nil
}
